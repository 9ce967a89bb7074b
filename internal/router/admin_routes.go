package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/handler"
	"github.com/iliyamo/tour-group-coordinator/internal/middleware"
	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// RegisterAdmin registers ADMIN-only endpoints: bulk grouping, guide
// assignment, request cancellation and the guide directory.
func RegisterAdmin(e *echo.Echo, d Deps, purge echo.MiddlewareFunc) {
	t := handler.NewTourHandler(d.Svc)
	b := handler.NewBookingHandler(d.Svc, d.Guides)
	gd := handler.NewGuideHandler(d.Guides, d.Tokens, d.Cfg.BcryptCost)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	}

	// ---- Tours ----
	e.POST("/v1/tours/auto-group", t.AutoGroup, append(admin, purge)...)
	e.POST("/v1/tours", t.CreateForDate, append(admin, purge)...)
	e.PATCH("/v1/tours/:id/guide", t.AssignGuide, append(admin, purge)...)
	e.DELETE("/v1/bookings/:id", b.Cancel, append(admin, purge)...)

	// ---- Guides ----
	g := e.Group("/v1/admin", admin...)
	g.GET("/guides", gd.List)
	g.POST("/guides", gd.Create, purge)
	g.PATCH("/guides/:id", gd.Update, purge)
	g.DELETE("/guides/:id", gd.Deactivate, purge)
}
