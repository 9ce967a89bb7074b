package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-group-coordinator/internal/tour"
)

// BookingHandler serves the public booking form, the public calendar and
// the staff view of ungrouped requests.
type BookingHandler struct {
	Svc    *tour.Service
	Guides GuideStore
}

func NewBookingHandler(svc *tour.Service, guides GuideStore) *BookingHandler {
	return &BookingHandler{Svc: svc, Guides: guides}
}

// Submit handles POST /v1/bookings.
func (h *BookingHandler) Submit(c echo.Context) error {
	var in tour.BookingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Svc.SubmitBookingRequest(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// Calendar handles GET /v1/bookings/calendar?year=&month=.  Both default
// to the current month.
func (h *BookingHandler) Calendar(c echo.Context) error {
	today := h.Svc.Today()
	year, _ := strconv.Atoi(today[:4])
	month, _ := strconv.Atoi(today[5:7])
	if v := c.QueryParam("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "year must be a number")
		}
		year = n
	}
	if v := c.QueryParam("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "month must be a number")
		}
		month = n
	}
	days, err := h.Svc.Calendar(c.Request().Context(), year, month)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"year": year, "month": month, "days": days})
}

// DateDetail handles GET /v1/bookings/date?date=YYYY-MM-DD.
func (h *BookingHandler) DateDetail(c echo.Context) error {
	detail, err := h.Svc.DateDetail(c.Request().Context(), c.QueryParam("date"), h.guideNames)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Ungrouped handles GET /v1/bookings/ungrouped.  Requests dated before
// today, or before ?from= when given, are left out.
func (h *BookingHandler) Ungrouped(c echo.Context) error {
	from := strings.TrimSpace(c.QueryParam("from"))
	if from == "" {
		from = h.Svc.Today()
	}
	buckets, err := h.Svc.ListUngroupedByDate(c.Request().Context(), from)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"from": from, "dates": buckets})
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	if err := h.Svc.CancelRequest(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// guideNames resolves display names for the public date view.  Unknown
// ids are left out of the map.
func (h *BookingHandler) guideNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 || h.Guides == nil {
		return names, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	guides, err := h.Guides.List(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, g := range guides {
		if want[g.ID] {
			names[g.ID] = g.DisplayName()
		}
	}
	return names, nil
}
