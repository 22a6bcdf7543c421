// Package dbtest opens throwaway SQLite databases migrated with the workflow
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Models lists every table the workflow engine owns.
func Models() []any {
	return []any{
		&models.Campaign{},
		&models.Phase{},
		&models.PlannedIngredient{},
		&models.PlannedMeal{},
		&models.PhaseTransition{},
		&models.IngredientRequest{},
		&models.IngredientRequestItem{},
		&models.OperationRequest{},
		&models.ExpenseProof{},
		&models.MealBatch{},
		&models.MealBatchIngredientUsage{},
		&models.DeliveryTask{},
		&models.LedgerEvent{},
		&models.OutboxEvent{},
		&models.OutboxDeadLetter{},
	}
}

// Open returns a migrated in-memory database private to the test. A single
// connection keeps concurrent transactions serialized the way row locks would.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(Models()...))
	return conn
}

// Client wraps Open in the shared db.Client so services get WithTx.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}

// SeedPhase inserts a campaign and one phase of 1,000,000 split 40/35/25 at
// the given stored status.
func SeedPhase(t *testing.T, conn *gorm.DB, status enums.PhaseStatus) models.Phase {
	t.Helper()
	campaign := models.Campaign{Title: "Seed campaign", TargetAmount: 1_000_000, CreatedBy: uuid.New()}
	require.NoError(t, conn.Create(&campaign).Error)
	phase := models.Phase{
		CampaignID:            campaign.ID,
		Position:              1,
		Name:                  "Seed phase",
		TotalFundsAmount:      1_000_000,
		IngredientBudgetPct:   40,
		CookingBudgetPct:      35,
		DeliveryBudgetPct:     25,
		IngredientFundsAmount: 400_000,
		CookingFundsAmount:    350_000,
		DeliveryFundsAmount:   250_000,
		Status:                status,
	}
	require.NoError(t, conn.Create(&phase).Error)
	return phase
}

// SeedDisbursedRequest inserts a DISBURSED ingredient request matching the
// seeded 400,000 ingredient bucket: 40 kg of rice and 12.5 l of oil.
func SeedDisbursedRequest(t *testing.T, conn *gorm.DB, phase models.Phase) models.IngredientRequest {
	t.Helper()
	req := models.IngredientRequest{
		PhaseID:     phase.ID,
		RequestedBy: uuid.New(),
		TotalCost:   400_000,
		Status:      enums.IngredientRequestDisbursed,
		Items: []models.IngredientRequestItem{
			{PhaseID: phase.ID, Position: 1, Name: "Rice", Quantity: decimal.NewFromInt(40), Unit: "kg", UnitPrice: 5_000, LineTotal: 200_000},
			{PhaseID: phase.ID, Position: 2, Name: "Cooking oil", Quantity: decimal.RequireFromString("12.5"), Unit: "l", UnitPrice: 16_000, LineTotal: 200_000},
		},
	}
	require.NoError(t, conn.Create(&req).Error)
	return req
}
