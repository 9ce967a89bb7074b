package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// BookingRequestRepo provides data access to the booking_requests table.
// Requested dates travel as YYYY-MM-DD strings; the queries format the
// DATE column explicitly so the scan does not depend on parseTime.
type BookingRequestRepo struct {
	q DBTX
}

// NewBookingRequestRepo returns a BookingRequestRepo bound to the given handle.
func NewBookingRequestRepo(q DBTX) *BookingRequestRepo { return &BookingRequestRepo{q: q} }

const requestColumns = `id, DATE_FORMAT(requested_date, '%Y-%m-%d'), group_size,
       contact_name, contact_email, contact_phone,
       preferred_guide_id, tour_group_id, created_at`

// CreateRequest inserts a new booking request.  The caller supplies the
// ID and CreatedAt so creation order is fixed before the row exists.
func (r *BookingRequestRepo) CreateRequest(ctx context.Context, b *model.BookingRequest) error {
	const q = `INSERT INTO booking_requests
        (id, requested_date, group_size, contact_name, contact_email, contact_phone, preferred_guide_id, tour_group_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, q,
		b.ID, b.RequestedDate, b.GroupSize,
		b.ContactName, b.ContactEmail, b.ContactPhone,
		nullString(b.PreferredGuideID), nullString(b.TourGroupID), b.CreatedAt.UTC(),
	)
	return err
}

// GetRequest fetches a booking request by id.  ErrNotFound is returned
// when no such row exists.
func (r *BookingRequestRepo) GetRequest(ctx context.Context, id string) (*model.BookingRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM booking_requests WHERE id = ?`, id)
	b, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteRequest removes a booking request.  It returns ErrNotFound when
// nothing was deleted.
func (r *BookingRequestRepo) DeleteRequest(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM booking_requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUngrouped returns every ungrouped request dated on or after
// fromDate, ordered by date and then first-come-first-served.
func (r *BookingRequestRepo) ListUngrouped(ctx context.Context, fromDate string) ([]model.BookingRequest, error) {
	const q = `SELECT ` + requestColumns + `
               FROM booking_requests
               WHERE tour_group_id IS NULL AND requested_date >= ?
               ORDER BY requested_date, created_at, seq`
	return r.list(ctx, q, fromDate)
}

// ListUngroupedOn returns the ungrouped requests of a single date in
// creation order.
func (r *BookingRequestRepo) ListUngroupedOn(ctx context.Context, date string) ([]model.BookingRequest, error) {
	const q = `SELECT ` + requestColumns + `
               FROM booking_requests
               WHERE tour_group_id IS NULL AND requested_date = ?
               ORDER BY created_at, seq`
	return r.list(ctx, q, date)
}

// ListRequestsByGroups returns the members of the given groups ordered by
// group and creation.  An empty id list yields an empty result.
func (r *BookingRequestRepo) ListRequestsByGroups(ctx context.Context, groupIDs []string) ([]model.BookingRequest, error) {
	if len(groupIDs) == 0 {
		return []model.BookingRequest{}, nil
	}
	args := make([]any, 0, len(groupIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}
	q := `SELECT ` + requestColumns + `
          FROM booking_requests
          WHERE tour_group_id IN (` + placeholders(len(groupIDs)) + `)
          ORDER BY tour_group_id, created_at, seq`
	return r.list(ctx, q, args...)
}

// ListRequestsBetween returns all requests, grouped or not, dated within
// [fromDate, toDate].
func (r *BookingRequestRepo) ListRequestsBetween(ctx context.Context, fromDate, toDate string) ([]model.BookingRequest, error) {
	const q = `SELECT ` + requestColumns + `
               FROM booking_requests
               WHERE requested_date BETWEEN ? AND ?
               ORDER BY requested_date, created_at, seq`
	return r.list(ctx, q, fromDate, toDate)
}

// MoveRequests reassigns the listed requests to group `to`, but only the
// rows whose tour_group_id still equals `from`.  The null-safe comparison
// lets from == nil mean "still ungrouped".  The number of moved rows is
// returned so callers can detect a lost race.
func (r *BookingRequestRepo) MoveRequests(ctx context.Context, ids []string, from, to *string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, nullString(to))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, nullString(from))
	q := `UPDATE booking_requests
          SET tour_group_id = ?
          WHERE id IN (` + placeholders(len(ids)) + `) AND tour_group_id <=> ?`
	res, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BookingRequestRepo) list(ctx context.Context, q string, args ...any) ([]model.BookingRequest, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingRequest, 0)
	for rows.Next() {
		b, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(s rowScanner) (*model.BookingRequest, error) {
	var b model.BookingRequest
	var preferred, group sql.NullString
	if err := s.Scan(
		&b.ID, &b.RequestedDate, &b.GroupSize,
		&b.ContactName, &b.ContactEmail, &b.ContactPhone,
		&preferred, &group, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.PreferredGuideID = stringPtr(preferred)
	b.TourGroupID = stringPtr(group)
	return &b, nil
}
