package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrelief/relief-backend/pkg/db/dbtest"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

func TestRepositoryAgainstSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	phase := dbtest.SeedPhase(t, conn, enums.PhaseStatusAwaitingIngredientDisbursement)
	repo := NewRepository(conn)
	ctx := context.Background()

	ingredientReq, cookingReq := uuid.New(), uuid.New()
	entries := []models.LedgerEvent{
		{CampaignID: phase.CampaignID, PhaseID: phase.ID, RequestID: ingredientReq, Bucket: enums.BudgetBucketIngredient, Type: enums.LedgerEventTypeDisbursement, AmountMinor: 400_000, ActorUserID: uuid.New()},
		{CampaignID: phase.CampaignID, PhaseID: phase.ID, RequestID: cookingReq, Bucket: enums.BudgetBucketCooking, Type: enums.LedgerEventTypeDisbursement, AmountMinor: 120_000, ActorUserID: uuid.New()},
		{CampaignID: phase.CampaignID, PhaseID: phase.ID, RequestID: uuid.New(), Bucket: enums.BudgetBucketCooking, Type: enums.LedgerEventTypeDisbursement, AmountMinor: 30_000, ActorUserID: uuid.New()},
		{CampaignID: phase.CampaignID, PhaseID: uuid.New(), RequestID: uuid.New(), Bucket: enums.BudgetBucketCooking, Type: enums.LedgerEventTypeDisbursement, AmountMinor: 999, ActorUserID: uuid.New()},
	}
	for i := range entries {
		require.NoError(t, repo.WithTx(conn).Append(ctx, &entries[i]))
	}

	totals, err := repo.BucketTotals(ctx, phase.ID)
	require.NoError(t, err)
	assert.Equal(t, map[enums.BudgetBucket]int64{
		enums.BudgetBucketIngredient: 400_000,
		enums.BudgetBucketCooking:    150_000,
	}, totals)

	listed, err := repo.ForPhase(ctx, phase.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	hit, err := repo.HasEntry(ctx, cookingReq, enums.LedgerEventTypeDisbursement)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = repo.HasEntry(ctx, cookingReq, enums.LedgerEventTypeAdjustment)
	require.NoError(t, err)
	assert.False(t, hit)

	empty, err := repo.BucketTotals(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
