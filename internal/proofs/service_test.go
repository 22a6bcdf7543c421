package proofs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db"
	"github.com/foodrelief/relief-backend/pkg/db/dbtest"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/outbox"
)

type stubKeys struct {
	err error
}

func (s stubKeys) ValidateKeys([]string) error { return s.err }

type fixture struct {
	conn    *gorm.DB
	svc     Service
	staff   phases.Actor
	auditor phases.Actor
}

func newFixture(t *testing.T, tolerance string) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	runner, err := phases.NewRunner(phases.RunnerOptions{Tx: db.Wrap(conn), Repo: phases.NewRepository(conn), Outbox: publisher})
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), runner, publisher, stubKeys{}, decimal.RequireFromString(tolerance))
	require.NoError(t, err)
	return &fixture{
		conn:    conn,
		svc:     svc,
		staff:   phases.Actor{UserID: uuid.New(), Role: enums.ActorRoleKitchenStaff},
		auditor: phases.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
}

func (f *fixture) seedDisbursed(t *testing.T) (models.Phase, models.IngredientRequest) {
	t.Helper()
	phase := dbtest.SeedPhase(t, f.conn, enums.PhaseStatusIngredientPurchase)
	req := models.IngredientRequest{
		PhaseID:     phase.ID,
		RequestedBy: f.staff.UserID,
		TotalCost:   400_000,
		Status:      enums.IngredientRequestDisbursed,
	}
	require.NoError(t, f.conn.Create(&req).Error)
	return phase, req
}

func (f *fixture) submit(t *testing.T, requestID uuid.UUID, claimed int64) *ProofResult {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID:     requestID,
		MediaKeys:     []string{"proofs/receipt-1.jpg"},
		ClaimedAmount: claimed,
		Actor:         f.staff,
	})
	require.NoError(t, err)
	return res
}

func TestSubmitProofMovesPhaseToAudit(t *testing.T) {
	f := newFixture(t, "5")
	phase, req := f.seedDisbursed(t)

	res := f.submit(t, req.ID, 410_000)
	assert.Equal(t, enums.ExpenseProofPending, res.Status)
	assert.Equal(t, enums.ExpenseRequestIngredient, res.RequestKind)
	assert.Equal(t, int64(400_000), res.PlannedAmount)
	assert.Equal(t, int64(10_000), res.AmountVariance)
	assert.False(t, res.VarianceFlagged)
	assert.Equal(t, enums.PhaseStatusAwaitingAudit, res.PhaseStatus)

	var stored models.Phase
	require.NoError(t, f.conn.First(&stored, "id = ?", phase.ID).Error)
	assert.Equal(t, enums.PhaseStatusAwaitingAudit, stored.Status)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventExpenseProofSubmitted).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, res.ID, events[0].AggregateID)
}

func TestSubmitProofFlagsVarianceBeyondTolerance(t *testing.T) {
	f := newFixture(t, "0")
	_, req := f.seedDisbursed(t)

	res := f.submit(t, req.ID, 399_000)
	assert.Equal(t, int64(-1_000), res.AmountVariance)
	assert.True(t, res.VarianceFlagged)
}

func TestSubmitProofRejectsDuplicateOpenProof(t *testing.T) {
	f := newFixture(t, "5")
	_, req := f.seedDisbursed(t)
	f.submit(t, req.ID, 400_000)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID:     req.ID,
		MediaKeys:     []string{"proofs/receipt-2.jpg"},
		ClaimedAmount: 400_000,
		Actor:         f.staff,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition), "got %v", err)
}

func TestSubmitProofAfterRejectionIsAllowed(t *testing.T) {
	f := newFixture(t, "5")
	_, req := f.seedDisbursed(t)
	first := f.submit(t, req.ID, 400_000)

	_, err := f.svc.Reject(context.Background(), first.ID, f.auditor, "receipt is unreadable")
	require.NoError(t, err)

	second := f.submit(t, req.ID, 400_000)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, enums.PhaseStatusAwaitingAudit, second.PhaseStatus)
}

func TestSubmitProofRequiresDisbursedRequest(t *testing.T) {
	f := newFixture(t, "5")
	phase := dbtest.SeedPhase(t, f.conn, enums.PhaseStatusAwaitingIngredientDisbursement)
	req := models.IngredientRequest{PhaseID: phase.ID, RequestedBy: f.staff.UserID, TotalCost: 400_000, Status: enums.IngredientRequestAccepted}
	require.NoError(t, f.conn.Create(&req).Error)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID:     req.ID,
		MediaKeys:     []string{"proofs/receipt.jpg"},
		ClaimedAmount: 400_000,
		Actor:         f.staff,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition), "got %v", err)
}

func TestSubmitProofValidation(t *testing.T) {
	f := newFixture(t, "5")
	_, req := f.seedDisbursed(t)
	ctx := context.Background()

	cases := map[string]SubmitInput{
		"missing keys":   {RequestID: req.ID, ClaimedAmount: 1, Actor: f.staff},
		"zero claim":     {RequestID: req.ID, MediaKeys: []string{"k"}, Actor: f.staff},
		"missing target": {MediaKeys: []string{"k"}, ClaimedAmount: 1, Actor: f.staff},
		"bad kind":       {RequestKind: "MEAL", RequestID: req.ID, MediaKeys: []string{"k"}, ClaimedAmount: 1, Actor: f.staff},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	_, err := f.svc.Submit(ctx, SubmitInput{RequestID: req.ID, MediaKeys: []string{"k"}, ClaimedAmount: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Submit(ctx, SubmitInput{RequestID: uuid.New(), MediaKeys: []string{"k"}, ClaimedAmount: 1, Actor: f.staff})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSubmitProofPropagatesKeyValidation(t *testing.T) {
	conn := dbtest.Open(t)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	runner, err := phases.NewRunner(phases.RunnerOptions{Tx: db.Wrap(conn), Repo: phases.NewRepository(conn), Outbox: publisher})
	require.NoError(t, err)
	keyErr := pkgerrors.New(pkgerrors.CodeValidation, "unknown media key")
	svc, err := NewService(NewRepository(conn), runner, publisher, stubKeys{err: keyErr}, decimal.Zero)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), SubmitInput{RequestID: uuid.New(), MediaKeys: []string{"bad"}, ClaimedAmount: 1, Actor: phases.Actor{UserID: uuid.New()}})
	assert.True(t, errors.Is(err, keyErr))
}

func TestApproveProofAdvancesToCookingDisbursement(t *testing.T) {
	f := newFixture(t, "5")
	phase, req := f.seedDisbursed(t)
	proof := f.submit(t, req.ID, 400_000)

	res, err := f.svc.Approve(context.Background(), proof.ID, f.auditor, "")
	require.NoError(t, err)
	assert.Equal(t, enums.ExpenseProofApproved, res.Status)
	assert.Nil(t, res.AdminNote)
	require.NotNil(t, res.ReviewedAt)
	assert.Equal(t, enums.PhaseStatusAwaitingCookingDisbursement, res.PhaseStatus)

	var transitions []models.PhaseTransition
	require.NoError(t, f.conn.Where("phase_id = ?", phase.ID).Order("created_at ASC").Find(&transitions).Error)
	require.Len(t, transitions, 2)
	assert.Equal(t, enums.PhaseStatusAwaitingCookingDisbursement, transitions[1].ToStatus)

	_, err = f.svc.Approve(context.Background(), proof.ID, f.auditor, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition))
}

func TestRejectProofRequiresNote(t *testing.T) {
	f := newFixture(t, "5")
	_, req := f.seedDisbursed(t)
	proof := f.submit(t, req.ID, 400_000)

	_, err := f.svc.Reject(context.Background(), proof.ID, f.auditor, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	res, err := f.svc.Reject(context.Background(), proof.ID, f.auditor, "amount does not match receipt")
	require.NoError(t, err)
	assert.Equal(t, enums.ExpenseProofRejected, res.Status)
	require.NotNil(t, res.AdminNote)
	assert.Equal(t, "amount does not match receipt", *res.AdminNote)
	assert.Equal(t, enums.PhaseStatusAwaitingAudit, res.PhaseStatus)
}

func TestSubmitProofForOperationRequest(t *testing.T) {
	f := newFixture(t, "10")
	phase := dbtest.SeedPhase(t, f.conn, enums.PhaseStatusCooking)
	op := models.OperationRequest{
		PhaseID:     phase.ID,
		RequestedBy: f.staff.UserID,
		ExpenseType: enums.ExpenseTypeCooking,
		Title:       "Gas and charcoal",
		TotalCost:   350_000,
		Status:      enums.OperationRequestApproved,
	}
	require.NoError(t, f.conn.Create(&op).Error)

	res, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestKind:   enums.ExpenseRequestOperation,
		RequestID:     op.ID,
		MediaKeys:     []string{"proofs/gas.jpg"},
		ClaimedAmount: 300_000,
		Actor:         f.staff,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-50_000), res.AmountVariance)
	assert.True(t, res.VarianceFlagged)
	assert.Equal(t, enums.PhaseStatusCooking, res.PhaseStatus)
}

func TestSubmitProofOnCancelledPhase(t *testing.T) {
	f := newFixture(t, "5")
	phase, req := f.seedDisbursed(t)
	require.NoError(t, f.conn.Model(&models.Phase{}).Where("id = ?", phase.ID).Update("status", enums.PhaseStatusCancelled).Error)

	_, err := f.svc.Submit(context.Background(), SubmitInput{RequestID: req.ID, MediaKeys: []string{"k"}, ClaimedAmount: 1, Actor: f.staff})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePhaseTerminated), "got %v", err)
}

func TestVariance(t *testing.T) {
	cases := []struct {
		name      string
		claimed   int64
		planned   int64
		tolerance string
		variance  int64
		flagged   bool
	}{
		{"exact", 100_000, 100_000, "0", 0, false},
		{"within", 104_000, 100_000, "5", 4_000, false},
		{"boundary", 105_000, 100_000, "5", 5_000, false},
		{"over", 105_001, 100_000, "5", 5_001, true},
		{"under", 90_000, 100_000, "5", -10_000, true},
		{"fractional tolerance", 100_300, 100_000, "0.25", 300, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			variance, flagged := Variance(tc.claimed, tc.planned, decimal.RequireFromString(tc.tolerance))
			assert.Equal(t, tc.variance, variance)
			assert.Equal(t, tc.flagged, flagged)
		})
	}
}
