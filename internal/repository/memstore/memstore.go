// Package memstore is an in-memory repository.Store.  It keeps the same
// conditional-update semantics as the MySQL store so the engine can be
// exercised without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
)

// Store holds requests and groups in maps guarded by a single mutex.
type Store struct {
	mu       sync.Mutex
	requests map[string]model.BookingRequest
	groups   map[string]model.TourGroup
	order    map[string]uint64 // insertion sequence, breaks created_at ties
	seq      uint64

	// FailMove, when set, is consulted before every MoveRequests call and
	// its error returned instead of performing the move.
	FailMove func(ids []string, from, to *string) error
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		requests: make(map[string]model.BookingRequest),
		groups:   make(map[string]model.TourGroup),
		order:    make(map[string]uint64),
	}
}

// view is a Store bound to an open transaction; the lock is already held.
type view struct{ s *Store }

var _ repository.Store = view{}

func (s *Store) CreateRequest(ctx context.Context, r *model.BookingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRequest(r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRequest(id)
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRequest(id)
}

func (s *Store) ListUngrouped(ctx context.Context, fromDate string) ([]model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRequests(func(r model.BookingRequest) bool {
		return !r.Grouped() && r.RequestedDate >= fromDate
	}), nil
}

func (s *Store) ListUngroupedOn(ctx context.Context, date string) ([]model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRequests(func(r model.BookingRequest) bool {
		return !r.Grouped() && r.RequestedDate == date
	}), nil
}

func (s *Store) ListRequestsByGroups(ctx context.Context, groupIDs []string) ([]model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestsByGroups(groupIDs), nil
}

func (s *Store) ListRequestsBetween(ctx context.Context, fromDate, toDate string) ([]model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterRequests(func(r model.BookingRequest) bool {
		return r.RequestedDate >= fromDate && r.RequestedDate <= toDate
	}), nil
}

func (s *Store) MoveRequests(ctx context.Context, ids []string, from, to *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveRequests(ids, from, to)
}

func (s *Store) CreateGroup(ctx context.Context, g *model.TourGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createGroup(g)
}

func (s *Store) GetGroup(ctx context.Context, id string) (*model.TourGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getGroup(id)
}

func (s *Store) ListGroups(ctx context.Context, f model.GroupFilter) ([]model.TourGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listGroups(f), nil
}

func (s *Store) UpdateGroup(ctx context.Context, g *model.TourGroup, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateGroup(g, version), nil
}

// RunInTx serialises fn against every other store operation.  When fn
// fails the maps are restored to their state before the call.
func (s *Store) RunInTx(ctx context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(view{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (v view) CreateRequest(ctx context.Context, r *model.BookingRequest) error {
	return v.s.createRequest(r)
}

func (v view) GetRequest(ctx context.Context, id string) (*model.BookingRequest, error) {
	return v.s.getRequest(id)
}

func (v view) DeleteRequest(ctx context.Context, id string) error { return v.s.deleteRequest(id) }

func (v view) ListUngrouped(ctx context.Context, fromDate string) ([]model.BookingRequest, error) {
	return v.s.filterRequests(func(r model.BookingRequest) bool {
		return !r.Grouped() && r.RequestedDate >= fromDate
	}), nil
}

func (v view) ListUngroupedOn(ctx context.Context, date string) ([]model.BookingRequest, error) {
	return v.s.filterRequests(func(r model.BookingRequest) bool {
		return !r.Grouped() && r.RequestedDate == date
	}), nil
}

func (v view) ListRequestsByGroups(ctx context.Context, groupIDs []string) ([]model.BookingRequest, error) {
	return v.s.requestsByGroups(groupIDs), nil
}

func (v view) ListRequestsBetween(ctx context.Context, fromDate, toDate string) ([]model.BookingRequest, error) {
	return v.s.filterRequests(func(r model.BookingRequest) bool {
		return r.RequestedDate >= fromDate && r.RequestedDate <= toDate
	}), nil
}

func (v view) MoveRequests(ctx context.Context, ids []string, from, to *string) (int64, error) {
	return v.s.moveRequests(ids, from, to)
}

func (v view) CreateGroup(ctx context.Context, g *model.TourGroup) error { return v.s.createGroup(g) }

func (v view) GetGroup(ctx context.Context, id string) (*model.TourGroup, error) {
	return v.s.getGroup(id)
}

func (v view) ListGroups(ctx context.Context, f model.GroupFilter) ([]model.TourGroup, error) {
	return v.s.listGroups(f), nil
}

func (v view) UpdateGroup(ctx context.Context, g *model.TourGroup, version int) (bool, error) {
	return v.s.updateGroup(g, version), nil
}

// RunInTx on a bound view joins the enclosing transaction.
func (v view) RunInTx(ctx context.Context, fn func(repository.Store) error) error { return fn(v) }

// internal helpers; callers hold s.mu

func (s *Store) createRequest(r *model.BookingRequest) error {
	if _, ok := s.requests[r.ID]; ok {
		return repository.ErrConflict
	}
	s.seq++
	s.order[r.ID] = s.seq
	s.requests[r.ID] = cloneRequest(*r)
	return nil
}

func (s *Store) getRequest(id string) (*model.BookingRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneRequest(r)
	return &c, nil
}

func (s *Store) deleteRequest(id string) error {
	if _, ok := s.requests[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.requests, id)
	delete(s.order, id)
	return nil
}

func (s *Store) filterRequests(keep func(model.BookingRequest) bool) []model.BookingRequest {
	out := make([]model.BookingRequest, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RequestedDate != b.RequestedDate {
			return a.RequestedDate < b.RequestedDate
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.order[a.ID] < s.order[b.ID]
	})
	return out
}

func (s *Store) requestsByGroups(groupIDs []string) []model.BookingRequest {
	want := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		want[id] = true
	}
	return s.filterRequests(func(r model.BookingRequest) bool {
		return r.Grouped() && want[*r.TourGroupID]
	})
}

func (s *Store) moveRequests(ids []string, from, to *string) (int64, error) {
	if s.FailMove != nil {
		if err := s.FailMove(ids, from, to); err != nil {
			return 0, err
		}
	}
	var n int64
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, ok := s.requests[id]
		if !ok || !sameGroup(r.TourGroupID, from) {
			continue
		}
		r.TourGroupID = copyString(to)
		s.requests[id] = r
		n++
	}
	return n, nil
}

func (s *Store) createGroup(g *model.TourGroup) error {
	if _, ok := s.groups[g.ID]; ok {
		return repository.ErrConflict
	}
	g.Version = 0
	s.seq++
	s.order[g.ID] = s.seq
	s.groups[g.ID] = cloneGroup(*g)
	return nil
}

func (s *Store) getGroup(id string) (*model.TourGroup, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneGroup(g)
	return &c, nil
}

func (s *Store) listGroups(f model.GroupFilter) []model.TourGroup {
	out := make([]model.TourGroup, 0)
	for _, g := range s.groups {
		if f.RequestedDate != "" && g.RequestedDate != f.RequestedDate {
			continue
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.GuideID != "" && (g.GuideID == nil || *g.GuideID != f.GuideID) {
			continue
		}
		out = append(out, cloneGroup(g))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RequestedDate != b.RequestedDate {
			return a.RequestedDate < b.RequestedDate
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.order[a.ID] < s.order[b.ID]
	})
	return out
}

func (s *Store) updateGroup(g *model.TourGroup, version int) bool {
	cur, ok := s.groups[g.ID]
	if !ok || cur.Version != version {
		return false
	}
	cur.Status = g.Status
	cur.GuideID = copyString(g.GuideID)
	cur.ConfirmedAt = copyTime(g.ConfirmedAt)
	cur.UpdatedAt = g.UpdatedAt
	cur.Version = version + 1
	s.groups[g.ID] = cur
	return true
}

type snapshot struct {
	requests map[string]model.BookingRequest
	groups   map[string]model.TourGroup
	order    map[string]uint64
	seq      uint64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		requests: make(map[string]model.BookingRequest, len(s.requests)),
		groups:   make(map[string]model.TourGroup, len(s.groups)),
		order:    make(map[string]uint64, len(s.order)),
		seq:      s.seq,
	}
	for k, v := range s.requests {
		snap.requests[k] = cloneRequest(v)
	}
	for k, v := range s.groups {
		snap.groups[k] = cloneGroup(v)
	}
	for k, v := range s.order {
		snap.order[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.requests = snap.requests
	s.groups = snap.groups
	s.order = snap.order
	s.seq = snap.seq
}

func sameGroup(cur, want *string) bool {
	if cur == nil || want == nil {
		return cur == nil && want == nil
	}
	return *cur == *want
}

func cloneRequest(r model.BookingRequest) model.BookingRequest {
	r.PreferredGuideID = copyString(r.PreferredGuideID)
	r.TourGroupID = copyString(r.TourGroupID)
	return r
}

func cloneGroup(g model.TourGroup) model.TourGroup {
	g.GuideID = copyString(g.GuideID)
	g.ConfirmedAt = copyTime(g.ConfirmedAt)
	return g
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
