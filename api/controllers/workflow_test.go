package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrelief/relief-backend/internal/deliveries"
	"github.com/foodrelief/relief-backend/internal/mealbatches"
	"github.com/foodrelief/relief-backend/internal/media"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/proofs"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/pagination"
)

type stubProofService struct {
	proofs.Service
	submitFn  func(ctx context.Context, input proofs.SubmitInput) (*proofs.ProofResult, error)
	approveFn func(ctx context.Context, id uuid.UUID, actor phases.Actor, note string) (*proofs.ProofResult, error)
	rejectFn  func(ctx context.Context, id uuid.UUID, actor phases.Actor, note string) (*proofs.ProofResult, error)
}

func (s stubProofService) Submit(ctx context.Context, input proofs.SubmitInput) (*proofs.ProofResult, error) {
	return s.submitFn(ctx, input)
}

func (s stubProofService) Approve(ctx context.Context, id uuid.UUID, actor phases.Actor, note string) (*proofs.ProofResult, error) {
	return s.approveFn(ctx, id, actor, note)
}

func (s stubProofService) Reject(ctx context.Context, id uuid.UUID, actor phases.Actor, note string) (*proofs.ProofResult, error) {
	return s.rejectFn(ctx, id, actor, note)
}

func TestExpenseProofSubmit(t *testing.T) {
	requestID := uuid.New()
	var got proofs.SubmitInput
	svc := stubProofService{submitFn: func(_ context.Context, input proofs.SubmitInput) (*proofs.ProofResult, error) {
		got = input
		return &proofs.ProofResult{
			ExpenseProofView: phases.ExpenseProofView{ID: uuid.New(), RequestID: requestID, Status: enums.ExpenseProofPending, VarianceFlagged: true},
			PhaseStatus:      enums.PhaseStatusAwaitingAudit,
		}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/", map[string]any{
		"request_id":     requestID.String(),
		"media_keys":     []string{" evidence/a.jpg "},
		"claimed_amount": 260000,
	})
	req = asActor(req, uuid.New(), enums.ActorRoleKitchenStaff)
	rec := httptest.NewRecorder()
	ExpenseProofSubmit(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, requestID, got.RequestID)
	assert.Equal(t, enums.ExpenseRequestKind(""), got.RequestKind)
	assert.Equal(t, []string{"evidence/a.jpg"}, got.MediaKeys)

	var body struct {
		VarianceFlagged bool   `json:"variance_flagged"`
		PhaseStatus     string `json:"phase_status"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.True(t, body.VarianceFlagged)
	assert.Equal(t, "AWAITING_AUDIT", body.PhaseStatus)
}

func TestExpenseProofSubmitRequiresMedia(t *testing.T) {
	req := jsonRequest(t, http.MethodPost, "/", map[string]any{"request_id": uuid.NewString(), "media_keys": []string{}})
	req = asActor(req, uuid.New(), enums.ActorRoleKitchenStaff)
	rec := httptest.NewRecorder()

	ExpenseProofSubmit(stubProofService{}, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpenseProofApproveWithoutBody(t *testing.T) {
	proofID := uuid.New()
	svc := stubProofService{approveFn: func(_ context.Context, id uuid.UUID, _ phases.Actor, note string) (*proofs.ProofResult, error) {
		assert.Equal(t, proofID, id)
		assert.Empty(t, note)
		return &proofs.ProofResult{ExpenseProofView: phases.ExpenseProofView{ID: id, Status: enums.ExpenseProofApproved}, PhaseStatus: enums.PhaseStatusAwaitingCookingDisbursement}, nil
	}}
	req := withParams(asActor(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New(), enums.ActorRoleAdmin), map[string]string{"proofId": proofID.String()})
	rec := httptest.NewRecorder()

	ExpenseProofApprove(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpenseProofRejectForwardsNote(t *testing.T) {
	svc := stubProofService{rejectFn: func(_ context.Context, _ uuid.UUID, _ phases.Actor, note string) (*proofs.ProofResult, error) {
		if note == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required when rejecting a proof")
		}
		return &proofs.ProofResult{ExpenseProofView: phases.ExpenseProofView{Status: enums.ExpenseProofRejected}}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/", map[string]any{"note": "receipt unreadable"})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleAdmin), map[string]string{"proofId": uuid.NewString()})
	rec := httptest.NewRecorder()
	ExpenseProofReject(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = withParams(asActor(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New(), enums.ActorRoleAdmin), map[string]string{"proofId": uuid.NewString()})
	rec = httptest.NewRecorder()
	ExpenseProofReject(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubBatchService struct {
	mealbatches.Service
	createFn   func(ctx context.Context, input mealbatches.CreateInput) (*mealbatches.BatchResult, error)
	addUsageFn func(ctx context.Context, id uuid.UUID, usages []mealbatches.UsageInput, actor phases.Actor) (*mealbatches.BatchResult, error)
	statusFn   func(ctx context.Context, input mealbatches.UpdateStatusInput) (*mealbatches.BatchResult, error)
}

func (s stubBatchService) Create(ctx context.Context, input mealbatches.CreateInput) (*mealbatches.BatchResult, error) {
	return s.createFn(ctx, input)
}

func (s stubBatchService) AddUsage(ctx context.Context, id uuid.UUID, usages []mealbatches.UsageInput, actor phases.Actor) (*mealbatches.BatchResult, error) {
	return s.addUsageFn(ctx, id, usages, actor)
}

func (s stubBatchService) UpdateStatus(ctx context.Context, input mealbatches.UpdateStatusInput) (*mealbatches.BatchResult, error) {
	return s.statusFn(ctx, input)
}

func TestMealBatchCreateMapsUsages(t *testing.T) {
	phaseID := uuid.New()
	itemID := uuid.New()
	var got mealbatches.CreateInput
	svc := stubBatchService{createFn: func(_ context.Context, input mealbatches.CreateInput) (*mealbatches.BatchResult, error) {
		got = input
		return &mealbatches.BatchResult{
			MealBatchView: phases.MealBatchView{ID: uuid.New(), PhaseID: phaseID, Status: enums.MealBatchPending},
			PhaseStatus:   enums.PhaseStatusCooking,
		}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/?lang=en", map[string]any{
		"food_name":         "Chicken rice",
		"quantity":          120,
		"ingredient_usages": []map[string]any{{"request_item_id": itemID.String(), "quantity": "4.5"}},
	})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"phaseId": phaseID.String()})
	rec := httptest.NewRecorder()
	MealBatchCreate(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, got.Usages, 1)
	assert.Equal(t, itemID, got.Usages[0].RequestItemID)
	assert.True(t, got.Usages[0].Quantity.Equal(decimal.RequireFromString("4.5")))

	var body struct {
		StatusLabel      string `json:"status_label"`
		PhaseStatusLabel string `json:"phase_status_label"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, "Preparing", body.StatusLabel)
	assert.Equal(t, "Cooking", body.PhaseStatusLabel)
}

func TestMealBatchAddUsageOverconsumption(t *testing.T) {
	svc := stubBatchService{addUsageFn: func(context.Context, uuid.UUID, []mealbatches.UsageInput, phases.Actor) (*mealbatches.BatchResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeOverconsumption, "usage exceeds purchased quantity")
	}}
	req := jsonRequest(t, http.MethodPost, "/", map[string]any{
		"ingredient_usages": []map[string]any{{"request_item_id": uuid.NewString(), "quantity": "100"}},
	})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"batchId": uuid.NewString()})
	rec := httptest.NewRecorder()

	MealBatchAddUsage(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMealBatchUpdateStatusValidatesStatus(t *testing.T) {
	var got mealbatches.UpdateStatusInput
	svc := stubBatchService{statusFn: func(_ context.Context, input mealbatches.UpdateStatusInput) (*mealbatches.BatchResult, error) {
		got = input
		return &mealbatches.BatchResult{MealBatchView: phases.MealBatchView{Status: input.Status}, PhaseStatus: enums.PhaseStatusCooking}, nil
	}}

	req := jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "ready", "media_keys": []string{"evidence/pot.jpg"}})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"batchId": uuid.NewString()})
	rec := httptest.NewRecorder()
	MealBatchUpdateStatus(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.MealBatchReady, got.Status)
	assert.Equal(t, []string{"evidence/pot.jpg"}, got.MediaKeys)
	assert.Nil(t, got.CookedAt)

	req = jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "READY", "cooked_at": "2026-03-14T10:30:00+07:00"})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"batchId": uuid.NewString()})
	rec = httptest.NewRecorder()
	MealBatchUpdateStatus(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.CookedAt)
	assert.True(t, time.Date(2026, 3, 14, 3, 30, 0, 0, time.UTC).Equal(*got.CookedAt))

	req = jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "burnt"})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"batchId": uuid.NewString()})
	rec = httptest.NewRecorder()
	MealBatchUpdateStatus(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubDeliveryService struct {
	deliveries.Service
	createFn   func(ctx context.Context, input deliveries.CreateInput) (*deliveries.TaskResult, error)
	statusFn   func(ctx context.Context, input deliveries.UpdateStatusInput) (*deliveries.TaskResult, error)
	reassignFn func(ctx context.Context, input deliveries.ReassignInput) (*deliveries.TaskResult, error)
	listMineFn func(ctx context.Context, actor phases.Actor, status *enums.DeliveryTaskStatus, page pagination.Params) (*deliveries.TaskPage, error)
}

func (s stubDeliveryService) Create(ctx context.Context, input deliveries.CreateInput) (*deliveries.TaskResult, error) {
	return s.createFn(ctx, input)
}

func (s stubDeliveryService) UpdateStatus(ctx context.Context, input deliveries.UpdateStatusInput) (*deliveries.TaskResult, error) {
	return s.statusFn(ctx, input)
}

func (s stubDeliveryService) Reassign(ctx context.Context, input deliveries.ReassignInput) (*deliveries.TaskResult, error) {
	return s.reassignFn(ctx, input)
}

func (s stubDeliveryService) ListMine(ctx context.Context, actor phases.Actor, status *enums.DeliveryTaskStatus, page pagination.Params) (*deliveries.TaskPage, error) {
	return s.listMineFn(ctx, actor, status, page)
}

func TestDeliveryTaskCreate(t *testing.T) {
	batchID := uuid.New()
	staffID := uuid.New()
	svc := stubDeliveryService{createFn: func(_ context.Context, input deliveries.CreateInput) (*deliveries.TaskResult, error) {
		assert.Equal(t, batchID, input.MealBatchID)
		assert.Equal(t, staffID, input.DeliveryStaffID)
		return &deliveries.TaskResult{DeliveryTaskView: phases.DeliveryTaskView{ID: uuid.New(), Status: enums.DeliveryTaskPending}, PhaseStatus: enums.PhaseStatusDelivery}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/", map[string]any{"delivery_staff_id": staffID.String()})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"batchId": batchID.String()})
	rec := httptest.NewRecorder()
	DeliveryTaskCreate(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDeliveryTaskUpdateStatusForwardsNote(t *testing.T) {
	svc := stubDeliveryService{statusFn: func(_ context.Context, input deliveries.UpdateStatusInput) (*deliveries.TaskResult, error) {
		assert.Equal(t, enums.DeliveryTaskFailed, input.Status)
		assert.Equal(t, "road flooded", input.Note)
		return &deliveries.TaskResult{DeliveryTaskView: phases.DeliveryTaskView{Status: input.Status}, PhaseStatus: enums.PhaseStatusDelivery}, nil
	}}
	req := jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "FAILED", "note": "road flooded"})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleDeliveryStaff), map[string]string{"taskId": uuid.NewString()})
	rec := httptest.NewRecorder()

	DeliveryTaskUpdateStatus(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		StatusLabel string `json:"status_label"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, "Giao thất bại", body.StatusLabel)
}

func TestDeliveryTaskUpdateStatusByNonAssignee(t *testing.T) {
	svc := stubDeliveryService{statusFn: func(context.Context, deliveries.UpdateStatusInput) (*deliveries.TaskResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assignee may update this task")
	}}
	req := jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "ACCEPTED"})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleDeliveryStaff), map[string]string{"taskId": uuid.NewString()})
	rec := httptest.NewRecorder()

	DeliveryTaskUpdateStatus(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeliveryTaskReassign(t *testing.T) {
	taskID := uuid.New()
	staffID := uuid.New()
	svc := stubDeliveryService{reassignFn: func(_ context.Context, input deliveries.ReassignInput) (*deliveries.TaskResult, error) {
		assert.Equal(t, taskID, input.TaskID)
		assert.Equal(t, staffID, input.DeliveryStaffID)
		replaced := input.TaskID
		return &deliveries.TaskResult{DeliveryTaskView: phases.DeliveryTaskView{ID: uuid.New(), ReplacesTaskID: &replaced, Status: enums.DeliveryTaskPending}}, nil
	}}
	req := jsonRequest(t, http.MethodPost, "/", map[string]any{"delivery_staff_id": staffID.String()})
	req = withParams(asActor(req, uuid.New(), enums.ActorRoleKitchenStaff), map[string]string{"taskId": taskID.String()})
	rec := httptest.NewRecorder()

	DeliveryTaskReassign(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		ReplacesTaskID string `json:"replaces_task_id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Equal(t, taskID.String(), body.ReplacesTaskID)
}

func TestDeliveryTaskListMine(t *testing.T) {
	staffID := uuid.New()
	svc := stubDeliveryService{listMineFn: func(_ context.Context, actor phases.Actor, status *enums.DeliveryTaskStatus, page pagination.Params) (*deliveries.TaskPage, error) {
		assert.Equal(t, staffID, actor.UserID)
		require.NotNil(t, status)
		assert.Equal(t, enums.DeliveryTaskOutForDelivery, *status)
		assert.Equal(t, pagination.Params{Limit: 1, Cursor: "abc"}, page)
		return &deliveries.TaskPage{
			Tasks:      []phases.DeliveryTaskView{{ID: uuid.New(), DeliveryStaffID: staffID, Status: enums.DeliveryTaskOutForDelivery}},
			NextCursor: "next",
		}, nil
	}}
	req := asActor(httptest.NewRequest(http.MethodGet, "/?status=out_for_delivery&lang=en&limit=1&cursor=abc", nil), staffID, enums.ActorRoleDeliveryStaff)
	rec := httptest.NewRecorder()

	DeliveryTaskListMine(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Tasks []struct {
			StatusLabel string `json:"status_label"`
		} `json:"tasks"`
		NextCursor string `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "Out for delivery", body.Tasks[0].StatusLabel)
	assert.Equal(t, "next", body.NextCursor)
}

func TestDeliveryTaskListMineRejectsBadLimit(t *testing.T) {
	svc := stubDeliveryService{listMineFn: func(context.Context, phases.Actor, *enums.DeliveryTaskStatus, pagination.Params) (*deliveries.TaskPage, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := asActor(httptest.NewRequest(http.MethodGet, "/?limit=zero", nil), uuid.New(), enums.ActorRoleDeliveryStaff)
	rec := httptest.NewRecorder()

	DeliveryTaskListMine(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubMediaService struct {
	generateFn func(ctx context.Context, input media.UploadInput) ([]media.UploadTarget, error)
}

func (s stubMediaService) GenerateUploadURLs(ctx context.Context, input media.UploadInput) ([]media.UploadTarget, error) {
	return s.generateFn(ctx, input)
}

func (s stubMediaService) ValidateKeys([]string) error { return nil }

func TestMediaUploadURLs(t *testing.T) {
	userID := uuid.New()
	svc := stubMediaService{generateFn: func(_ context.Context, input media.UploadInput) ([]media.UploadTarget, error) {
		assert.Equal(t, userID, input.OwnerID)
		assert.Equal(t, 2, input.FileCount)
		assert.Equal(t, []string{"image/jpeg"}, input.FileTypes)
		return []media.UploadTarget{
			{UploadURL: "https://signed/1", FileKey: "evidence/1.jpg", ExpiresAt: time.Now().Add(time.Hour)},
			{UploadURL: "https://signed/2", FileKey: "evidence/2.jpg", ExpiresAt: time.Now().Add(time.Hour)},
		}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/", map[string]any{"file_count": 2, "file_types": []string{" IMAGE/JPEG "}})
	req = asActor(req, userID, enums.ActorRoleKitchenStaff)
	rec := httptest.NewRecorder()
	MediaUploadURLs(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Uploads []media.UploadTarget `json:"uploads"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &body))
	assert.Len(t, body.Uploads, 2)
}
