package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/handler"
	"github.com/iliyamo/tour-group-coordinator/internal/middleware"
	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// RegisterStaff registers endpoints open to every signed-in guide,
// administrators included.  Writes purge the public response cache.
func RegisterStaff(e *echo.Echo, t *handler.TourHandler, b *handler.BookingHandler, jwtSecret string, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleGuide),
	)

	g.GET("/bookings/ungrouped", b.Ungrouped)

	g.GET("/tours", t.List)
	g.GET("/tours/:id", t.Get)
	g.POST("/tours/from-selection", t.FromSelection, purge)

	// lifecycle
	g.POST("/tours/:id/claim", t.Claim, purge)
	g.POST("/tours/:id/unclaim", t.Unclaim, purge)
	g.POST("/tours/:id/submit", t.Submit, purge)
	g.POST("/tours/:id/confirm", t.Confirm, purge)
	g.POST("/tours/:id/complete", t.Complete, purge)
}
