package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodrelief/relief-backend/api/controllers"
	"github.com/foodrelief/relief-backend/api/middleware"
	"github.com/foodrelief/relief-backend/internal/campaigns"
	"github.com/foodrelief/relief-backend/internal/deliveries"
	"github.com/foodrelief/relief-backend/internal/mealbatches"
	"github.com/foodrelief/relief-backend/internal/media"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/proofs"
	"github.com/foodrelief/relief-backend/internal/requests"
	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/enums"
	"github.com/foodrelief/relief-backend/pkg/logger"
	pkgredis "github.com/foodrelief/relief-backend/pkg/redis"
)

// Infra carries the shared clients the router needs beyond the services.
// Nil fields disable the matching feature.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	GCS         controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter
	Metrics     prometheus.Gatherer
	Requests    middleware.RequestObserver
}

type Services struct {
	Campaigns   campaigns.Service
	Phases      phases.Service
	Requests    requests.Service
	Proofs      proofs.Service
	MealBatches mealbatches.Service
	Deliveries  deliveries.Service
	Media       media.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, infra.Requests),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    infra.DB,
			"redis": infra.Redis,
			"gcs":   infra.GCS,
		}))
	})

	if infra.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{}))
	}

	var (
		admin      = middleware.RequireRoles(logg, enums.ActorRoleAdmin)
		organizers = middleware.RequireRoles(logg, enums.ActorRoleAdmin, enums.ActorRoleFundraiser)
		kitchen    = middleware.RequireRoles(logg, enums.ActorRoleKitchenStaff)
		coordinate = middleware.RequireRoles(logg, enums.ActorRoleKitchenStaff, enums.ActorRoleAdmin)
		field      = middleware.RequireRoles(logg, enums.ActorRoleKitchenStaff, enums.ActorRoleDeliveryStaff)
		couriers   = middleware.RequireRoles(logg, enums.ActorRoleDeliveryStaff)
		staff      = middleware.RequireRoles(logg, enums.ActorRoleAdmin, enums.ActorRoleFundraiser, enums.ActorRoleKitchenStaff, enums.ActorRoleDeliveryStaff)
	)

	idempotencyTTL := 24 * time.Hour
	if cfg.Redis.IdempotencyTTL > 0 {
		idempotencyTTL = cfg.Redis.IdempotencyTTL
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(infra.RateLimiter, cfg.Redis.RateLimitPerMinute, logg))

		// Routes stay flat inside the group so the idempotency middleware sees
		// the full route pattern.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(infra.Idempotency, idempotencyTTL, logg))

			r.Get("/me", controllers.WhoAmI())

			r.With(organizers).Post("/campaigns", controllers.CampaignCreate(svc.Campaigns, logg))
			r.Get("/campaigns/{campaignId}", controllers.CampaignGet(svc.Campaigns, logg))
			r.With(organizers).Post("/campaigns/{campaignId}/phases", controllers.PhaseCreate(svc.Phases, logg))
			r.Get("/campaigns/{campaignId}/phases", controllers.PhaseList(svc.Phases, logg))

			r.Get("/phases/{phaseId}", controllers.PhaseGet(svc.Phases, logg))
			r.With(admin).Patch("/phases/{phaseId}/budget", controllers.PhaseUpdateBudget(svc.Phases, logg))
			r.With(admin).Post("/phases/{phaseId}/cancel", controllers.PhaseCancel(svc.Phases, logg))
			r.With(admin).Post("/phases/{phaseId}/fail", controllers.PhaseFail(svc.Phases, logg))
			r.With(kitchen).Post("/phases/{phaseId}/ingredient-requests", controllers.IngredientRequestSubmit(svc.Requests, logg))
			r.With(field).Post("/phases/{phaseId}/operation-requests", controllers.OperationRequestSubmit(svc.Requests, logg))
			r.With(kitchen).Post("/phases/{phaseId}/meal-batches", controllers.MealBatchCreate(svc.MealBatches, logg))

			r.Get("/ingredient-requests/{requestId}", controllers.IngredientRequestGet(svc.Requests, logg))
			r.With(admin).Post("/ingredient-requests/{requestId}/approve", controllers.IngredientRequestApprove(svc.Requests, logg))
			r.With(admin).Post("/ingredient-requests/{requestId}/reject", controllers.IngredientRequestReject(svc.Requests, logg))
			r.With(admin).Post("/ingredient-requests/{requestId}/disburse", controllers.IngredientRequestDisburse(svc.Requests, logg))

			r.Get("/operation-requests/{requestId}", controllers.OperationRequestGet(svc.Requests, logg))
			r.With(admin).Post("/operation-requests/{requestId}/approve", controllers.OperationRequestApprove(svc.Requests, logg))
			r.With(admin).Post("/operation-requests/{requestId}/reject", controllers.OperationRequestReject(svc.Requests, logg))

			r.With(field).Post("/expense-proofs", controllers.ExpenseProofSubmit(svc.Proofs, logg))
			r.Get("/expense-proofs/{proofId}", controllers.ExpenseProofGet(svc.Proofs, logg))
			r.With(admin).Post("/expense-proofs/{proofId}/approve", controllers.ExpenseProofApprove(svc.Proofs, logg))
			r.With(admin).Post("/expense-proofs/{proofId}/reject", controllers.ExpenseProofReject(svc.Proofs, logg))

			r.Get("/meal-batches/{batchId}", controllers.MealBatchGet(svc.MealBatches, logg))
			r.With(kitchen).Post("/meal-batches/{batchId}/usages", controllers.MealBatchAddUsage(svc.MealBatches, logg))
			r.With(kitchen).Patch("/meal-batches/{batchId}/status", controllers.MealBatchUpdateStatus(svc.MealBatches, logg))
			r.With(coordinate).Post("/meal-batches/{batchId}/delivery-tasks", controllers.DeliveryTaskCreate(svc.Deliveries, logg))

			r.With(couriers).Get("/delivery-tasks/mine", controllers.DeliveryTaskListMine(svc.Deliveries, logg))
			r.Get("/delivery-tasks/{taskId}", controllers.DeliveryTaskGet(svc.Deliveries, logg))
			r.With(couriers).Patch("/delivery-tasks/{taskId}/status", controllers.DeliveryTaskUpdateStatus(svc.Deliveries, logg))
			r.With(coordinate).Post("/delivery-tasks/{taskId}/reassign", controllers.DeliveryTaskReassign(svc.Deliveries, logg))

			r.With(staff).Post("/media/upload-urls", controllers.MediaUploadURLs(svc.Media, logg))
		})
	})

	return r
}
