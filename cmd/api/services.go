package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodrelief/relief-backend/api/routes"
	"github.com/foodrelief/relief-backend/internal/campaigns"
	"github.com/foodrelief/relief-backend/internal/deliveries"
	"github.com/foodrelief/relief-backend/internal/ledger"
	"github.com/foodrelief/relief-backend/internal/mealbatches"
	"github.com/foodrelief/relief-backend/internal/media"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/proofs"
	"github.com/foodrelief/relief-backend/internal/requests"
	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/db"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/metrics"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/storage/gcs"
)

// buildServices wires every domain service around one phase runner so all
// child mutations share the same version claim and status recompute.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gcsClient *gcs.Client, reg prometheus.Registerer) (routes.Services, error) {
	var out routes.Services
	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	campaignSvc, err := campaigns.NewService(campaigns.NewRepository(gdb), dbClient, outboxSvc)
	if err != nil {
		return out, fmt.Errorf("campaign service: %w", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb), outboxSvc)
	if err != nil {
		return out, fmt.Errorf("ledger service: %w", err)
	}

	phaseRepo := phases.NewRepository(gdb)
	runner, err := phases.NewRunner(phases.RunnerOptions{
		Tx:              dbClient,
		Repo:            phaseRepo,
		Outbox:          outboxSvc,
		Campaigns:       campaignSvc,
		Metrics:         metrics.NewWorkflowMetrics(reg),
		Logger:          logg,
		ConflictRetries: cfg.Workflow.ConflictRetries,
	})
	if err != nil {
		return out, fmt.Errorf("phase runner: %w", err)
	}
	phaseSvc, err := phases.NewService(phaseRepo, dbClient, runner, ledgerSvc, campaignSvc)
	if err != nil {
		return out, fmt.Errorf("phase service: %w", err)
	}

	requestSvc, err := requests.NewService(requests.NewRepository(gdb), runner, ledgerSvc)
	if err != nil {
		return out, fmt.Errorf("request service: %w", err)
	}

	mediaSvc, err := media.NewService(gcsClient, media.Options{
		Bucket:     cfg.GCS.BucketName,
		UploadTTL:  cfg.GCS.UploadURLExpiry,
		CDNBaseURL: cfg.GCS.CDNBaseURL,
		MaxKeys:    cfg.Workflow.MaxEvidenceKeys,
	})
	if err != nil {
		return out, fmt.Errorf("media service: %w", err)
	}

	proofSvc, err := proofs.NewService(proofs.NewRepository(gdb), runner, outboxSvc, mediaSvc, cfg.Workflow.VarianceTolerance())
	if err != nil {
		return out, fmt.Errorf("expense proof service: %w", err)
	}
	batchSvc, err := mealbatches.NewService(mealbatches.NewRepository(gdb), runner, mediaSvc)
	if err != nil {
		return out, fmt.Errorf("meal batch service: %w", err)
	}
	deliverySvc, err := deliveries.NewService(deliveries.NewRepository(gdb), runner, outboxSvc)
	if err != nil {
		return out, fmt.Errorf("delivery service: %w", err)
	}

	return routes.Services{
		Campaigns:   campaignSvc,
		Phases:      phaseSvc,
		Requests:    requestSvc,
		Proofs:      proofSvc,
		MealBatches: batchSvc,
		Deliveries:  deliverySvc,
		Media:       mediaSvc,
	}, nil
}
