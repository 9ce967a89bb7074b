package tour

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// AssignGuide sets or clears (guideID == "") the guide of a group.  On
// Pending and Ready groups the status follows the guide: Ready with one,
// Pending without.  Later statuses keep their status.
func (s *Service) AssignGuide(ctx context.Context, groupID, guideID string) (*model.TourGroup, error) {
	guide := optionalID(strings.TrimSpace(guideID))
	g, err := s.mutateGroup(ctx, groupID, func(g *model.TourGroup) error {
		if holdsGuideCoupling(g.Status) {
			ev := EventAssignGuide
			if guide == nil {
				ev = EventUnassignGuide
				if g.Status == model.StatusPending {
					return nil
				}
			}
			if _, ok := Next(g.Status, ev); !ok {
				return fmt.Errorf("%w: %s on %s", ErrInvalidState, ev, g.Status)
			}
		}
		applyGuide(g, guide)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("guide assigned group=%s guide=%s status=%s", g.ID, deref(g.GuideID), g.Status)
	return g, nil
}

// ClaimGroup assigns guideID to an unassigned Pending or Ready group.  It
// fails with ErrAlreadyClaimed when any guide holds the group and with a
// state conflict when a concurrent claim wins.
func (s *Service) ClaimGroup(ctx context.Context, groupID, guideID string) (*model.TourGroup, error) {
	if guideID == "" {
		return nil, invalid("guide id is required")
	}
	return s.mutateGroup(ctx, groupID, func(g *model.TourGroup) error {
		to, ok := Next(g.Status, EventClaim)
		if !ok {
			return fmt.Errorf("%w: cannot claim a %s group", ErrInvalidState, g.Status)
		}
		if g.GuideID != nil {
			return ErrAlreadyClaimed
		}
		g.GuideID = &guideID
		g.Status = to
		return nil
	})
}

// UnclaimGroup releases a group held by guideID, returning it to Pending.
func (s *Service) UnclaimGroup(ctx context.Context, groupID, guideID string) (*model.TourGroup, error) {
	if guideID == "" {
		return nil, invalid("guide id is required")
	}
	return s.mutateGroup(ctx, groupID, func(g *model.TourGroup) error {
		to, ok := Next(g.Status, EventUnclaim)
		if !ok {
			return fmt.Errorf("%w: cannot unclaim a %s group", ErrInvalidState, g.Status)
		}
		if g.GuideID == nil || *g.GuideID != guideID {
			return ErrNotAssignee
		}
		g.GuideID = nil
		g.Status = to
		return nil
	})
}

// SubmitToAuthority records that the group was sent to the gallery for
// approval.
func (s *Service) SubmitToAuthority(ctx context.Context, groupID string) (*model.TourGroup, error) {
	return s.transition(ctx, groupID, EventSubmit)
}

// CompleteGroup marks a confirmed tour as held.
func (s *Service) CompleteGroup(ctx context.Context, groupID string) (*model.TourGroup, error) {
	return s.transition(ctx, groupID, EventComplete)
}

func (s *Service) transition(ctx context.Context, groupID string, ev Event) (*model.TourGroup, error) {
	g, err := s.mutateGroup(ctx, groupID, func(g *model.TourGroup) error {
		to, ok := Next(g.Status, ev)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrInvalidState, ev, g.Status)
		}
		g.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("%s group=%s status=%s", ev, g.ID, g.Status)
	return g, nil
}

// Confirmation is the outcome of recording the gallery's approval.
type Confirmation struct {
	Group    *model.TourGroup `json:"tour_group"`
	Notified bool             `json:"notified"`
	// NotifyPending means the send outlived the confirm wait and carries on
	// in the background.
	NotifyPending bool   `json:"notify_pending,omitempty"`
	NotifyError   string `json:"notify_error,omitempty"`
}

// confirmLayouts are accepted for the confirmed date-time; layouts without
// an offset are read in the service's zone.
var confirmLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

// ParseConfirmedAt parses a confirmation date-time.
func (s *Service) ParseConfirmedAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, invalid("confirmed datetime is required")
	}
	for _, layout := range confirmLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("confirmed datetime %q is not RFC3339 or YYYY-MM-DDTHH:MM", v)
}

// RecordAuthorityConfirmation moves a PendingYale group to Confirmed with
// the approved visit time, then fires the confirmation notice exactly
// once.  A notification failure is reported in the result and logged; the
// confirmation stays committed.
func (s *Service) RecordAuthorityConfirmation(ctx context.Context, groupID, datetime string) (*Confirmation, error) {
	at, err := s.ParseConfirmedAt(datetime)
	if err != nil {
		return nil, err
	}
	g, err := s.mutateGroup(ctx, groupID, func(g *model.TourGroup) error {
		to, ok := Next(g.Status, EventConfirm)
		if !ok {
			return fmt.Errorf("%w: cannot confirm a %s group", ErrInvalidState, g.Status)
		}
		g.Status = to
		g.ConfirmedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("confirmed group=%s at=%s", g.ID, at.Format(time.RFC3339))

	out := &Confirmation{Group: g}
	if s.notifier == nil {
		return out, nil
	}
	ev := *g
	done := s.dispatch(ctx, "confirm group="+g.ID, func(ctx context.Context) error {
		members, err := s.store.ListRequestsByGroups(ctx, []string{ev.ID})
		if err != nil {
			logf("confirm notify: member lookup failed group=%s err=%v", ev.ID, err)
			members = nil
		}
		return s.notifier.TourConfirmed(ctx, ev, members)
	})
	wait := time.NewTimer(s.confirmWait)
	defer wait.Stop()
	select {
	case err := <-done:
		if err != nil {
			out.NotifyError = err.Error()
		} else {
			out.Notified = true
		}
	case <-wait.C:
		out.NotifyPending = true
	case <-ctx.Done():
		out.NotifyPending = true
	}
	return out, nil
}

func deref(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}
