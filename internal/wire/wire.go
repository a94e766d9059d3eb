// internal/wire/wire.go
package wire

import (
	"context"
	"net/http"
	"time"

	"provalab-api/internal/adaptor"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/middleware"
	"provalab-api/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// guards are the per-group middleware shared by the wire functions.
type guards struct {
	session  func(http.Handler) http.Handler
	throttle func(http.Handler) http.Handler
	meter    func(http.Handler) http.Handler
}

// Wiring builds services, handlers and the router. rdb may be nil, which
// turns the HTTP throttle off.
func Wiring(deps usecase.Dependencies, rdb redis.Scripter) *App {
	deps.SetDefaults()

	service := usecase.NewService(deps)
	handler := adaptor.NewHandler(service, deps.Config, deps.Log)

	g := guards{
		session:  middleware.AuthSession(deps.Codec, deps.Store.Repos().User, deps.Log),
		throttle: middleware.Throttle(rdb, deps.Config.RateLimit, deps.Now, deps.Log),
		meter:    middleware.PlanGate(service.Plan, true, deps.Log),
	}

	router := setupRouter(handler, deps.Store, g, deps.Config, deps.Log)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(
	handler *adaptor.Handler,
	store repository.Store,
	g guards,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	if config.App.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))

	// Apply routes
	wireAuth(r, handler.Auth, g)
	wireProfile(r, handler.Profile, g)
	wireExercise(r, handler.Exercise, g)
	wireAttempt(r, handler.Attempt, g)
	wireWebhook(r, handler.Webhook)

	r.Get("/health", health(store, logger))

	return r
}

func health(store repository.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.Error("Health check failed", zap.Error(err))
			utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Database unavailable", nil, nil)
			return
		}
		utils.ResponseSuccess(w, "OK", map[string]string{"status": "ok"})
	}
}
