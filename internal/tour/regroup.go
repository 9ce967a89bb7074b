package tour

import (
	"context"
	"strings"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
)

// AutoGroupResult lists the groups created by one AutoGroup run.
type AutoGroupResult struct {
	Date   string      `json:"date"`
	Groups []GroupView `json:"groups"`
}

// AutoGroup packs every ungrouped request of date into new Pending groups
// in one transaction.  A second run with no new requests creates nothing.
// Requests submitted while the run is in progress stay ungrouped for the
// next run; a request grouped by someone else mid-run aborts the whole run
// with a state conflict.
func (s *Service) AutoGroup(ctx context.Context, date string) (*AutoGroupResult, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	res := &AutoGroupResult{Date: date, Groups: []GroupView{}}
	err = s.store.RunInTx(ctx, func(st repository.Store) error {
		reqs, err := st.ListUngroupedOn(ctx, date)
		if err != nil {
			return storeErr(err)
		}
		for _, b := range Plan(reqs) {
			g := s.newGroup(date, nil)
			if err := st.CreateGroup(ctx, g); err != nil {
				return storeErr(err)
			}
			if err := moveAll(ctx, st, b.IDs(), nil, &g.ID); err != nil {
				return err
			}
			members := make([]model.BookingRequest, len(b.Requests))
			for i, r := range b.Requests {
				r.TourGroupID = &g.ID
				members[i] = r
			}
			res.Groups = append(res.Groups, newGroupView(*g, members))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, g := range res.Groups {
		logf("auto-group date=%s group=%s people=%d requests=%d", date, g.ID, g.TotalPeople, g.RequestCount)
	}
	return res, nil
}

// Selection names requests to carve out of a source scope: a tour group
// when SourceGroupID is set, otherwise the ungrouped bucket of Date.
type Selection struct {
	SourceGroupID string   `json:"source_group_id"`
	Date          string   `json:"date"`
	RequestIDs    []string `json:"request_ids"`
}

// CreateGroupFromSelection creates a new group on the source's date and
// moves exactly the selected requests into it.  The group starts Pending,
// or Ready held by the actor when the actor is a guide.  Group creation and
// the move commit together or not at all.
func (s *Service) CreateGroupFromSelection(ctx context.Context, actor Actor, sel Selection) (*GroupView, error) {
	ids := dedupe(sel.RequestIDs)
	if len(ids) == 0 {
		return nil, invalid("selection is empty")
	}
	var source *string
	if id := strings.TrimSpace(sel.SourceGroupID); id != "" {
		source = &id
	}
	date := strings.TrimSpace(sel.Date)
	if source == nil || date != "" {
		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		date = d
	}

	var guide *string
	if !actor.Admin && actor.ID != "" {
		guide = &actor.ID
	}

	var view GroupView
	err := s.store.RunInTx(ctx, func(st repository.Store) error {
		if source != nil {
			src, err := st.GetGroup(ctx, *source)
			if err != nil {
				return storeErr(err)
			}
			if date != "" && date != src.RequestedDate {
				return invalid("date %s does not match group %s on %s", date, src.ID, src.RequestedDate)
			}
			date = src.RequestedDate
		}
		for _, id := range ids {
			r, err := st.GetRequest(ctx, id)
			if err != nil {
				return storeErr(err)
			}
			if !inScope(*r, source, date) {
				return invalid("request %s is not in the selected scope", id)
			}
		}
		g := s.newGroup(date, guide)
		if err := st.CreateGroup(ctx, g); err != nil {
			return storeErr(err)
		}
		if err := moveAll(ctx, st, ids, source, &g.ID); err != nil {
			return err
		}
		members, err := st.ListRequestsByGroups(ctx, []string{g.ID})
		if err != nil {
			return storeErr(err)
		}
		view = newGroupView(*g, members)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("group from selection group=%s source=%s date=%s moved=%d", view.ID, deref(source), view.RequestedDate, len(ids))
	return &view, nil
}

// CreateGroupForDate creates a group on date, optionally held by guideID,
// and sweeps every ungrouped request of that date into it.
func (s *Service) CreateGroupForDate(ctx context.Context, date, guideID string) (*GroupView, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	guide := optionalID(strings.TrimSpace(guideID))
	var view GroupView
	err = s.store.RunInTx(ctx, func(st repository.Store) error {
		reqs, err := st.ListUngroupedOn(ctx, date)
		if err != nil {
			return storeErr(err)
		}
		g := s.newGroup(date, guide)
		if err := st.CreateGroup(ctx, g); err != nil {
			return storeErr(err)
		}
		if err := moveAll(ctx, st, model.RequestIDs(reqs), nil, &g.ID); err != nil {
			return err
		}
		for i := range reqs {
			reqs[i].TourGroupID = &g.ID
		}
		view = newGroupView(*g, reqs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("group for date group=%s date=%s requests=%d", view.ID, date, view.RequestCount)
	return &view, nil
}

func inScope(r model.BookingRequest, source *string, date string) bool {
	if r.RequestedDate != date {
		return false
	}
	if source == nil {
		return !r.Grouped()
	}
	return r.Grouped() && *r.TourGroupID == *source
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
