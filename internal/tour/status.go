package tour

import "github.com/iliyamo/tour-group-coordinator/internal/model"

// Event is a command that may move a tour group between statuses.
type Event string

const (
	EventAssignGuide   Event = "assign_guide"
	EventUnassignGuide Event = "unassign_guide"
	EventSubmit        Event = "submit"
	EventConfirm       Event = "confirm"
	EventComplete      Event = "complete"
	EventClaim         Event = "claim"
	EventUnclaim       Event = "unclaim"
)

// transitions lists every legal (status, event) pair and its target.
// Anything absent is rejected with ErrInvalidState.
var transitions = map[model.Status]map[Event]model.Status{
	model.StatusPending: {
		EventAssignGuide: model.StatusReady,
		EventSubmit:      model.StatusPendingYale,
		EventClaim:       model.StatusReady,
		EventUnclaim:     model.StatusPending,
	},
	model.StatusReady: {
		EventAssignGuide:   model.StatusReady,
		EventUnassignGuide: model.StatusPending,
		EventSubmit:        model.StatusPendingYale,
		EventClaim:         model.StatusReady,
		EventUnclaim:       model.StatusPending,
	},
	model.StatusPendingYale: {
		EventConfirm: model.StatusConfirmed,
	},
	model.StatusConfirmed: {
		EventComplete: model.StatusCompleted,
	},
}

// Next returns the status reached by applying ev to from and whether the
// transition is allowed.
func Next(from model.Status, ev Event) (model.Status, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// holdsGuideCoupling reports whether guide presence decides the status
// (Ready with a guide, Pending without).
func holdsGuideCoupling(s model.Status) bool {
	return s == model.StatusPending || s == model.StatusReady
}

// applyGuide sets the guide of g and re-derives Pending/Ready from it.
// Groups past Ready keep their status.
func applyGuide(g *model.TourGroup, guideID *string) {
	g.GuideID = guideID
	if !holdsGuideCoupling(g.Status) {
		return
	}
	if guideID != nil {
		g.Status = model.StatusReady
	} else {
		g.Status = model.StatusPending
	}
}
