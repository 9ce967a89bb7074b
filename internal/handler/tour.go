package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/middleware"
	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/tour"
)

// TourHandler exposes grouping and lifecycle commands to staff.
type TourHandler struct {
	Svc *tour.Service
}

func NewTourHandler(svc *tour.Service) *TourHandler {
	if svc == nil {
		panic("nil service passed to NewTourHandler")
	}
	return &TourHandler{Svc: svc}
}

type dateReq struct {
	Date    string `json:"date"`
	GuideID string `json:"guide_id"`
}

type guideReq struct {
	GuideID string `json:"guide_id"`
}

type confirmReq struct {
	ConfirmedDatetime string `json:"confirmed_datetime"`
}

// List handles GET /v1/tours?date=&status=&guide_id=.
func (h *TourHandler) List(c echo.Context) error {
	f := model.GroupFilter{
		RequestedDate: strings.TrimSpace(c.QueryParam("date")),
		Status:        model.Status(strings.TrimSpace(c.QueryParam("status"))),
		GuideID:       strings.TrimSpace(c.QueryParam("guide_id")),
	}
	groups, err := h.Svc.ListGroups(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tour_groups": groups, "count": len(groups)})
}

// Get handles GET /v1/tours/:id.
func (h *TourHandler) Get(c echo.Context) error {
	g, err := h.Svc.GetGroup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// AutoGroup handles POST /v1/tours/auto-group.
func (h *TourHandler) AutoGroup(c echo.Context) error {
	var req dateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.AutoGroup(c.Request().Context(), req.Date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CreateForDate handles POST /v1/tours: a new group sweeping the
// ungrouped requests of the date, optionally with a guide.
func (h *TourHandler) CreateForDate(c echo.Context) error {
	var req dateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	g, err := h.Svc.CreateGroupForDate(c.Request().Context(), req.Date, req.GuideID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

// FromSelection handles POST /v1/tours/from-selection.  A guide calling
// it becomes the new group's guide; an admin's group starts Pending.
func (h *TourHandler) FromSelection(c echo.Context) error {
	var sel tour.Selection
	if err := c.Bind(&sel); err != nil {
		return badRequest(c, "invalid request body")
	}
	g, err := h.Svc.CreateGroupFromSelection(c.Request().Context(), actor(c), sel)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

// AssignGuide handles PATCH /v1/tours/:id/guide.  An empty guide_id
// clears the guide.
func (h *TourHandler) AssignGuide(c echo.Context) error {
	var req guideReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	g, err := h.Svc.AssignGuide(c.Request().Context(), c.Param("id"), req.GuideID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Claim handles POST /v1/tours/:id/claim for the signed-in guide.
func (h *TourHandler) Claim(c echo.Context) error {
	g, err := h.Svc.ClaimGroup(c.Request().Context(), c.Param("id"), middleware.GuideID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Unclaim handles POST /v1/tours/:id/unclaim for the signed-in guide.
func (h *TourHandler) Unclaim(c echo.Context) error {
	g, err := h.Svc.UnclaimGroup(c.Request().Context(), c.Param("id"), middleware.GuideID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Submit handles POST /v1/tours/:id/submit.
func (h *TourHandler) Submit(c echo.Context) error {
	g, err := h.Svc.SubmitToAuthority(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Confirm handles POST /v1/tours/:id/confirm.  A failed notification is
// reported in the body; the confirmation itself stands.
func (h *TourHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.RecordAuthorityConfirmation(c.Request().Context(), c.Param("id"), req.ConfirmedDatetime)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Complete handles POST /v1/tours/:id/complete.
func (h *TourHandler) Complete(c echo.Context) error {
	g, err := h.Svc.CompleteGroup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func actor(c echo.Context) tour.Actor {
	return tour.Actor{ID: middleware.GuideID(c), Admin: middleware.Role(c) == model.RoleAdmin}
}
