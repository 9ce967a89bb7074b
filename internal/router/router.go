package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tour-group-coordinator/internal/config"
	"github.com/iliyamo/tour-group-coordinator/internal/handler"
	"github.com/iliyamo/tour-group-coordinator/internal/middleware"
	"github.com/iliyamo/tour-group-coordinator/internal/tour"
)

// Deps carries everything the routes need.  DB and Redis may be nil:
// health then skips the ping, and rate limiting and caching switch off.
type Deps struct {
	Cfg       config.Config
	Svc       *tour.Service
	Guides    handler.GuideStore
	Tokens    handler.TokenStore
	DB        *sql.DB
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// New builds an echo instance with request logging, panic recovery and
// every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	Register(e, d)
	return e
}

// Register wires all route groups onto e.
func Register(e *echo.Echo, d Deps) {
	purge := middleware.PurgeCache(d.Cache, d.Redis)
	RegisterRoutes(e, d)
	RegisterAuth(e, handler.NewAuthHandler(d.Cfg, d.Guides, d.Tokens), d.Cfg.JWTSecret)
	RegisterStaff(e, handler.NewTourHandler(d.Svc), handler.NewBookingHandler(d.Svc, d.Guides), d.Cfg.JWTSecret, purge)
	RegisterAdmin(e, d, purge)
}

// RegisterRoutes registers routes that need no authentication: the
// health probe, the booking form and the public calendar views.  Reads
// are served through the response cache and submissions are rate limited.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	b := handler.NewBookingHandler(d.Svc, d.Guides)
	g := handler.NewGuideHandler(d.Guides, d.Tokens, d.Cfg.BcryptCost)
	cache := middleware.ResponseCache(d.Cache, d.Redis)

	e.POST("/v1/bookings", b.Submit,
		middleware.RateLimit(d.RateLimit, d.Redis),
		middleware.PurgeCache(d.Cache, d.Redis))
	e.GET("/v1/bookings/calendar", b.Calendar, cache)
	e.GET("/v1/bookings/date", b.DateDetail, cache)
	e.GET("/v1/guides", g.PublicList, cache)
}

// RegisterAuth registers the staff authentication routes.  Login, refresh
// and logout live under /v1/auth without a session; /v1/me needs one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token in the body or a bearer token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}
