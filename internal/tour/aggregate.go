package tour

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// DateBucket is the ungrouped pool of one date.
type DateBucket struct {
	RequestedDate string                 `json:"requested_date"`
	Requests      []model.BookingRequest `json:"booking_requests"`
	RequestCount  int                    `json:"request_count"`
	TotalPeople   int                    `json:"total_people"`
}

// ListUngroupedByDate returns the ungrouped requests dated on or after
// today, bucketed by date in ascending order.  Members keep creation
// order.
func (s *Service) ListUngroupedByDate(ctx context.Context, today string) ([]DateBucket, error) {
	today, err := parseDate(today)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListUngrouped(ctx, today)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]DateBucket, 0)
	for _, r := range reqs {
		if n := len(out); n == 0 || out[n-1].RequestedDate != r.RequestedDate {
			out = append(out, DateBucket{RequestedDate: r.RequestedDate, Requests: []model.BookingRequest{}})
		}
		b := &out[len(out)-1]
		b.Requests = append(b.Requests, r)
		b.RequestCount++
		b.TotalPeople += r.GroupSize
	}
	return out, nil
}

// CalendarDay summarises all requests, grouped or not, on one date.
type CalendarDay struct {
	Date         string `json:"date"`
	TotalPeople  int    `json:"total_people"`
	RequestCount int    `json:"request_count"`
}

// Calendar returns per-date totals for the given month, dates without
// requests omitted.
func (s *Service) Calendar(ctx context.Context, year, month int) ([]CalendarDay, error) {
	if year < 1 || month < 1 || month > 12 {
		return nil, invalid("year and month are required (month 1-12)")
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	reqs, err := s.store.ListRequestsBetween(ctx, first.Format(model.DateLayout), last.Format(model.DateLayout))
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]CalendarDay, 0)
	for _, r := range reqs {
		if n := len(out); n == 0 || out[n-1].Date != r.RequestedDate {
			out = append(out, CalendarDay{Date: r.RequestedDate})
		}
		d := &out[len(out)-1]
		d.TotalPeople += r.GroupSize
		d.RequestCount++
	}
	return out, nil
}

// Participant is the public projection of a booking request.
type Participant struct {
	Name      string `json:"name"`
	GroupSize int    `json:"group_size"`
}

// DateGroup is a group as shown on the public date view.
type DateGroup struct {
	ID           string        `json:"id"`
	Status       model.Status  `json:"status"`
	GuideName    *string       `json:"guide_name"`
	Participants []Participant `json:"participants"`
	TotalPeople  int           `json:"total_people"`
}

// FormingGroup is the group that still accepts people on a date.
type FormingGroup struct {
	Participants []Participant `json:"participants"`
	TotalPeople  int           `json:"total_people"`
}

// DateDetail is the public view of one date.
type DateDetail struct {
	Date               string        `json:"date"`
	TotalPeople        int           `json:"total_people"`
	CurrentGroupPeople int           `json:"current_group_people"`
	SpotsLeft          int           `json:"spots_left"`
	RequestCount       int           `json:"request_count"`
	CurrentForming     *FormingGroup `json:"current_forming_group"`
	Groups             []DateGroup   `json:"groups"`
	GroupsCount        int           `json:"groups_count"`
}

// GuideNames resolves guide ids to display names for DateDetail.  Unknown
// ids are omitted from the result.
type GuideNames func(ctx context.Context, ids []string) (map[string]string, error)

// DateDetail describes the groups of date.  The first group, in creation
// order, under capacity and not yet Confirmed or Completed is reported as
// the forming group; every other non-empty group is listed.  TotalPeople
// counts grouped people only while RequestCount includes ungrouped
// requests.
func (s *Service) DateDetail(ctx context.Context, date string, names GuideNames) (*DateDetail, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroups(ctx, model.GroupFilter{RequestedDate: date})
	if err != nil {
		return nil, storeErr(err)
	}
	all, err := s.store.ListRequestsBetween(ctx, date, date)
	if err != nil {
		return nil, storeErr(err)
	}
	byGroup := make(map[string][]model.BookingRequest)
	for _, r := range all {
		if r.Grouped() {
			byGroup[*r.TourGroupID] = append(byGroup[*r.TourGroupID], r)
		}
	}

	guideNames := map[string]string{}
	if names != nil {
		var ids []string
		for _, g := range groups {
			if g.GuideID != nil {
				ids = append(ids, *g.GuideID)
			}
		}
		if len(ids) > 0 {
			m, err := names(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("%w: guide lookup: %w", ErrDependency, err)
			}
			guideNames = m
		}
	}

	out := &DateDetail{Date: date, RequestCount: len(all), Groups: []DateGroup{}}
	for _, g := range groups {
		members := byGroup[g.ID]
		total := model.TotalPeople(members)
		out.TotalPeople += total
		closed := g.Status == model.StatusConfirmed || g.Status == model.StatusCompleted
		if out.CurrentForming == nil && total < MaxGroupPeople && !closed {
			out.CurrentForming = &FormingGroup{Participants: participants(members), TotalPeople: total}
			out.CurrentGroupPeople = total
			continue
		}
		if total == 0 {
			continue
		}
		dg := DateGroup{ID: g.ID, Status: g.Status, Participants: participants(members), TotalPeople: total}
		if g.GuideID != nil {
			if n, ok := guideNames[*g.GuideID]; ok {
				dg.GuideName = &n
			}
		}
		out.Groups = append(out.Groups, dg)
	}
	out.SpotsLeft = max(0, MaxGroupPeople-out.CurrentGroupPeople)
	out.GroupsCount = len(out.Groups)
	return out, nil
}

func participants(reqs []model.BookingRequest) []Participant {
	out := make([]Participant, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Participant{Name: r.ContactName, GroupSize: r.GroupSize})
	}
	return out
}
