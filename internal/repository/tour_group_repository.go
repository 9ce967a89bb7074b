package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// TourGroupRepo provides data access to the tour_groups table.  Updates
// are optimistic: each one names the version it was computed from and
// only applies when that version is still current.
type TourGroupRepo struct {
	q DBTX
}

// NewTourGroupRepo returns a TourGroupRepo bound to the given handle.
func NewTourGroupRepo(q DBTX) *TourGroupRepo { return &TourGroupRepo{q: q} }

const groupColumns = `id, DATE_FORMAT(requested_date, '%Y-%m-%d'), status, guide_id,
       confirmed_at, version, created_at, updated_at`

// CreateGroup inserts a new tour group with the caller-assigned ID.  The
// version starts at zero and timestamps are taken from the record.
func (r *TourGroupRepo) CreateGroup(ctx context.Context, g *model.TourGroup) error {
	const q = `INSERT INTO tour_groups (id, requested_date, status, guide_id, confirmed_at, version, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, 0, ?, ?)`
	_, err := r.q.ExecContext(ctx, q,
		g.ID, g.RequestedDate, string(g.Status), nullString(g.GuideID),
		nullTime(g.ConfirmedAt), g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	g.Version = 0
	return nil
}

// GetGroup fetches a tour group by id or returns ErrNotFound.
func (r *TourGroupRepo) GetGroup(ctx context.Context, id string) (*model.TourGroup, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM tour_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGroups returns tour groups matching f ordered by date and creation.
func (r *TourGroupRepo) ListGroups(ctx context.Context, f model.GroupFilter) ([]model.TourGroup, error) {
	var where []string
	var args []any
	if f.RequestedDate != "" {
		where = append(where, "requested_date = ?")
		args = append(args, f.RequestedDate)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.GuideID != "" {
		where = append(where, "guide_id = ?")
		args = append(args, f.GuideID)
	}
	q := `SELECT ` + groupColumns + ` FROM tour_groups`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY requested_date, created_at, id`
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TourGroup, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateGroup writes the mutable workflow fields of g (status, guide,
// confirmation time) when the stored version equals version.  It reports
// whether a row was updated; false means another writer got there first
// or the group no longer exists.
func (r *TourGroupRepo) UpdateGroup(ctx context.Context, g *model.TourGroup, version int) (bool, error) {
	const q = `UPDATE tour_groups
               SET status = ?,
                   guide_id = ?,
                   confirmed_at = ?,
                   version = version + 1,
                   updated_at = ?
               WHERE id = ? AND version = ?`
	res, err := r.q.ExecContext(ctx, q,
		string(g.Status), nullString(g.GuideID), nullTime(g.ConfirmedAt),
		g.UpdatedAt.UTC(), g.ID, version,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanGroup(s rowScanner) (*model.TourGroup, error) {
	var g model.TourGroup
	var status string
	var guide sql.NullString
	var confirmed sql.NullTime
	if err := s.Scan(
		&g.ID, &g.RequestedDate, &status, &guide,
		&confirmed, &g.Version, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Status = model.Status(status)
	g.GuideID = stringPtr(guide)
	if confirmed.Valid {
		t := confirmed.Time.UTC()
		g.ConfirmedAt = &t
	}
	return &g, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
