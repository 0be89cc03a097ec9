package routes

import (
	"net/http"
	"time"

	"github.com/liableapp/liable/internal/app"
	"github.com/liableapp/liable/internal/handler"
	"github.com/liableapp/liable/internal/middleware"
)

// Check-in links are public; 30 attempts per 15 minutes per IP is plenty
// for a partner and slow for anyone guessing tokens.
const (
	checkinRateLimit  = 30
	checkinRateWindow = 15 * time.Minute
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.Store)
	checkin := handler.NewCheckinHandler(app.CheckinService)
	goal := handler.NewGoalHandler(app.GoalService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)

	// Check-in (token in body, rate limited)
	rateLimit := middleware.RateLimit(middleware.NewRateLimiter(checkinRateLimit, checkinRateWindow), app.Cfg.TrustedProxies)
	mux.HandleFunc("POST /goals/checkin", rateLimit(checkin.Checkin))
	mux.HandleFunc("POST /goals/checkin/goal", rateLimit(checkin.Goal))

	// ============================================================================
	// PROTECTED ROUTES (planner JWT)
	// ============================================================================

	mux.HandleFunc("GET /goals", middleware.RequireAuth(goal.List))
	mux.HandleFunc("POST /goals/create", middleware.RequireAuth(goal.Create))
	mux.HandleFunc("POST /goals/{id}/cancel", middleware.RequireAuth(goal.Cancel))

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)
}
