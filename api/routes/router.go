package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/controllers"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/middleware"
	checkoutsvc "github.com/AlexandreGoumain/my-pro-partner-sub005/internal/checkout"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/clients"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/documents"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	numberingService numbering.Service,
	documentService documents.Service,
	stockService stock.Service,
	loyaltyService loyalty.Service,
	clientService clients.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
	)

	// A nil *redis.Client must not reach the interfaces below as a non-nil
	// value.
	var idempotencyStore redis.IdempotencyStore
	var redisPinger controllers.Pinger
	if redisClient != nil {
		idempotencyStore = redisClient
		redisPinger = redisClient
	}
	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbPinger,
			"redis": redisPinger,
		}))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg, cfg.Redis.IdempotencyTTL))

		r.Post("/numbering/{documentType}/allocate", controllers.AllocateNumber(numberingService, logg))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", controllers.CreateDocument(documentService, logg))
			r.Get("/{documentId}", controllers.GetDocument(documentService, logg))
			r.Post("/{documentId}/transition", controllers.TransitionDocument(documentService, logg))
			r.Post("/{documentId}/convert", controllers.ConvertQuote(documentService, logg))
			r.Post("/{documentId}/payments", controllers.RecordDocumentPayment(documentService, logg))
			r.Post("/{documentId}/credit-note", controllers.IssueCreditNote(documentService, logg))
		})

		r.Route("/products/{productId}/stock-movements", func(r chi.Router) {
			r.Post("/", controllers.RecordStockMovement(stockService, logg))
			r.Get("/", controllers.ListStockMovements(stockService, logg))
		})

		r.Route("/clients/{clientId}", func(r chi.Router) {
			r.Get("/", controllers.GetClient(clientService, logg))
			r.Post("/points-movements", controllers.ApplyPointsMovement(loyaltyService, logg))
			r.Get("/points/expiring", controllers.ExpiringPoints(loyaltyService, logg))
		})

		r.Route("/pos/checkout", func(r chi.Router) {
			r.Post("/", controllers.POSCheckout(checkoutService, logg))
			r.Get("/{checkoutId}", controllers.GetCheckout(checkoutService, logg))
		})
	})

	return r
}
