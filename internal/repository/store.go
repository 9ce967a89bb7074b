package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// Store is the persistence contract of the grouping and lifecycle engine.
// Every method that depends on the current value of shared state is a
// conditional update: MoveRequests only touches rows whose group still
// equals the expected value, and UpdateGroup only applies when the stored
// version matches.  RunInTx executes fn atomically; a non-nil error from
// fn discards every write made through the Store passed to it.
type Store interface {
	CreateRequest(ctx context.Context, r *model.BookingRequest) error
	GetRequest(ctx context.Context, id string) (*model.BookingRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	// ListUngrouped returns ungrouped requests dated on or after fromDate,
	// ordered by date and then creation.
	ListUngrouped(ctx context.Context, fromDate string) ([]model.BookingRequest, error)
	// ListUngroupedOn returns the ungrouped requests of one date in
	// creation order.
	ListUngroupedOn(ctx context.Context, date string) ([]model.BookingRequest, error)
	ListRequestsByGroups(ctx context.Context, groupIDs []string) ([]model.BookingRequest, error)
	ListRequestsBetween(ctx context.Context, fromDate, toDate string) ([]model.BookingRequest, error)
	// MoveRequests sets the group of every listed request whose current
	// group equals from (nil meaning ungrouped) to to, and returns the
	// number of rows that moved.
	MoveRequests(ctx context.Context, ids []string, from, to *string) (int64, error)

	CreateGroup(ctx context.Context, g *model.TourGroup) error
	GetGroup(ctx context.Context, id string) (*model.TourGroup, error)
	ListGroups(ctx context.Context, f model.GroupFilter) ([]model.TourGroup, error)
	// UpdateGroup writes status, guide and confirmation time of g when the
	// stored version equals version, bumping it.  It reports whether the
	// row was updated.
	UpdateGroup(ctx context.Context, g *model.TourGroup, version int) (bool, error)

	RunInTx(ctx context.Context, fn func(Store) error) error
}

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on MySQL by composing the booking request and
// tour group repositories over a shared handle.
type SQLStore struct {
	*BookingRequestRepo
	*TourGroupRepo
	db *sql.DB // nil when the store is bound to a transaction
}

// NewSQLStore returns a Store bound to the given database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		BookingRequestRepo: NewBookingRequestRepo(db),
		TourGroupRepo:      NewTourGroupRepo(db),
		db:                 db,
	}
}

// DB exposes the underlying sql.DB.
func (s *SQLStore) DB() *sql.DB { return s.db }

// RunInTx begins a transaction, hands fn a Store bound to it and commits
// when fn succeeds.  Calls made on a store that is already bound to a
// transaction join that transaction.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	txStore := &SQLStore{
		BookingRequestRepo: &BookingRequestRepo{q: tx},
		TourGroupRepo:      &TourGroupRepo{q: tx},
	}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
