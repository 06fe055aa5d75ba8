package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"

	"github.com/cyl19970726/Code3/docs"
	"github.com/cyl19970726/Code3/middleware"
	"github.com/cyl19970726/Code3/services"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger            *slog.Logger
	Health            *services.HealthService
	Metrics           http.Handler
	AuthMaxSkew       time.Duration
	RateLimitCapacity int
	RateLimitRefill   int
	RequestTimeout    time.Duration
	StreamHeartbeat   time.Duration
	EnableFaucet      bool
}

// NewRouter builds the HTTP API over svc.
func NewRouter(svc *services.BountyService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = services.NewHealthService("unknown")
	}
	if opts.AuthMaxSkew <= 0 {
		opts.AuthMaxSkew = 5 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	health := NewHealthHandler(opts.Health, logger)
	bounties := NewBountyHandler(svc, logger)
	events := NewEventsHandler(svc, opts.StreamHeartbeat, logger)
	auth := middleware.NewSignatureAuth(opts.AuthMaxSkew)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	signed := []func(http.Handler) http.Handler{auth.Require}
	if opts.RateLimitCapacity > 0 {
		limiter := middleware.NewRateLimiter(opts.RateLimitCapacity, opts.RateLimitRefill)
		r.Use(limiter.Middleware)
		signed = append(signed, limiter.Middleware)
	}

	r.Get("/healthz", health.HandleHealth)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		// the event stream outlives any request timeout
		api.Get("/events/stream", events.HandleStream)

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(opts.RequestTimeout))
			api.Use(middleware.JSONBody)

			api.Get("/openapi.json", serveOpenAPI)
			api.Get("/events", events.HandleList)

			api.Get("/registry", bounties.HandleGetRegistry)
			api.With(signed...).Post("/registry", bounties.HandleInitialize)

			api.Route("/bounties", func(b chi.Router) {
				b.Get("/", bounties.HandleList)
				b.With(signed...).Post("/", bounties.HandleCreate)
				b.Get("/by-task-hash/{hash}", bounties.HandleByTaskHash)
				b.Get("/{id}", bounties.HandleGet)
				b.Get("/{id}/vault", bounties.HandleVault)
				b.Get("/{id}/qr", bounties.HandleVaultQR)
				b.With(signed...).Post("/{id}/{op}", bounties.HandleTransition)
			})

			api.Get("/accounts/{address}/balance", bounties.HandleBalance)
			if opts.EnableFaucet {
				api.Post("/accounts/{address}/fund", bounties.HandleFund)
			}
		})
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
