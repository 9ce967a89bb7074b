// Package tour holds the grouping and lifecycle engine: the greedy packer
// that turns ungrouped booking requests into tour groups, the workflow
// that drives a group from Pending to Completed, and the read models
// built over requests and groups.  Every state-dependent write is a
// compare-and-set through repository.Store.
package tour

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
	"github.com/iliyamo/tour-group-coordinator/internal/repository"
)

// Notifier receives fire-and-forget events after the owning write has
// committed.  Calls run off the request path under their own deadline.
// A returned error is logged and reported but never undoes the write.
type Notifier interface {
	TourConfirmed(ctx context.Context, g model.TourGroup, members []model.BookingRequest) error
	BookingReceived(ctx context.Context, r model.BookingRequest) error
}

// Actor identifies who issues a command.
type Actor struct {
	ID    string
	Admin bool
}

// Service runs engine commands against a Store.
type Service struct {
	store    repository.Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	newID    func() string

	sendTimeout time.Duration
	confirmWait time.Duration
	inflight    sync.WaitGroup
}

// Notification bounds used unless WithNotifyTimeouts says otherwise.
const (
	DefaultSendTimeout = 10 * time.Second
	DefaultConfirmWait = time.Second
)

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone used to interpret confirmation times given
// without an offset.  UTC by default.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDs replaces the uuid generator.
func WithIDs(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// WithNotifyTimeouts bounds a single notification send and how long a
// confirmation waits for its outcome before answering.
func WithNotifyTimeouts(send, confirmWait time.Duration) Option {
	return func(s *Service) {
		if send > 0 {
			s.sendTimeout = send
		}
		if confirmWait > 0 {
			s.confirmWait = confirmWait
		}
	}
}

// NewService builds a Service.  A nil notifier disables notifications.
func NewService(store repository.Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		loc:      time.UTC,
		now:      time.Now,
		newID:    uuid.NewString,

		sendTimeout: DefaultSendTimeout,
		confirmWait: DefaultConfirmWait,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// dispatch sends a notification in the background.  The send keeps the
// caller's values but not its cancellation, so a client hanging up after
// commit does not drop the event.  The channel yields the single result.
func (s *Service) dispatch(ctx context.Context, what string, send func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sendTimeout)
		defer cancel()
		err := send(sctx)
		if err != nil {
			logf("%s notify failed err=%v", what, err)
		}
		done <- err
	}()
	return done
}

// Drain blocks until in-flight notifications finish or ctx ends.
func (s *Service) Drain(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Today returns the current calendar date in the service's zone.
func (s *Service) Today() string { return s.now().In(s.loc).Format(model.DateLayout) }

// GroupView is a tour group with its members and derived totals.
type GroupView struct {
	model.TourGroup
	Requests     []model.BookingRequest `json:"booking_requests"`
	TotalPeople  int                    `json:"total_people"`
	RequestCount int                    `json:"request_count"`
}

func newGroupView(g model.TourGroup, members []model.BookingRequest) GroupView {
	if members == nil {
		members = []model.BookingRequest{}
	}
	return GroupView{
		TourGroup:    g,
		Requests:     members,
		TotalPeople:  model.TotalPeople(members),
		RequestCount: len(members),
	}
}

// newGroup returns an unsaved group for date.  A non-nil guide starts the
// group in Ready.
func (s *Service) newGroup(date string, guideID *string) *model.TourGroup {
	now := s.now().UTC()
	g := &model.TourGroup{
		ID:            s.newID(),
		RequestedDate: date,
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyGuide(g, guideID)
	return g
}

// mutateGroup reads a group, lets fn change it and writes it back only if
// nobody else updated it in between.
func (s *Service) mutateGroup(ctx context.Context, id string, fn func(g *model.TourGroup) error) (*model.TourGroup, error) {
	if id == "" {
		return nil, invalid("group id is required")
	}
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	version := g.Version
	if err := fn(g); err != nil {
		return nil, err
	}
	g.UpdatedAt = s.now().UTC()
	ok, err := s.store.UpdateGroup(ctx, g, version)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: group %s was modified concurrently", ErrStateConflict, id)
	}
	g.Version = version + 1
	return g, nil
}

// moveAll moves ids from one scope to another and fails with a conflict
// unless every id moved.
func moveAll(ctx context.Context, st repository.Store, ids []string, from, to *string) error {
	n, err := st.MoveRequests(ctx, ids, from, to)
	if err != nil {
		return storeErr(err)
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("%w: moved %d of %d requests", ErrStateConflict, n, len(ids))
	}
	return nil
}

func parseDate(date string) (string, error) {
	if date == "" {
		return "", invalid("date is required")
	}
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", invalid("date %q is not YYYY-MM-DD", date)
	}
	return t.Format(model.DateLayout), nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func logf(format string, args ...any) { log.Printf("tour: "+format, args...) }
