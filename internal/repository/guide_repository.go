package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/tour-group-coordinator/internal/model"
)

// GuideRepo mirrors the 'guides' table.  Guides are never hard-deleted;
// Deactivate clears is_active so tour groups keep valid references.
type GuideRepo struct{ DB *sql.DB }

func NewGuideRepo(db *sql.DB) *GuideRepo { return &GuideRepo{DB: db} }

const guideColumns = `id, email, password_hash, first_name, last_name, phone, languages, is_admin, is_active, created_at, updated_at`

// Create inserts a guide.  The e-mail is normalised and the caller
// supplies an already hashed password.  A duplicate e-mail yields ErrConflict.
func (r *GuideRepo) Create(ctx context.Context, g *model.Guide) error {
	g.Email = normalizeEmail(g.Email)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO guides (id, email, password_hash, first_name, last_name, phone, languages, is_admin, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		g.ID, g.Email, g.PasswordHash, g.FirstName, g.LastName, nullString(g.Phone),
		joinLanguages(g.Languages), g.IsAdmin, g.IsActive, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByEmail fetches a guide by normalized email.
func (r *GuideRepo) GetByEmail(ctx context.Context, email string) (*model.Guide, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+guideColumns+" FROM guides WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanGuideRow(row)
}

// GetByID fetches a guide by id.
func (r *GuideRepo) GetByID(ctx context.Context, id string) (*model.Guide, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+guideColumns+" FROM guides WHERE id=? LIMIT 1", id)
	return scanGuideRow(row)
}

// List returns guides ordered by first name.  Inactive guides are
// included only when includeInactive is set.
func (r *GuideRepo) List(ctx context.Context, includeInactive bool) ([]model.Guide, error) {
	q := "SELECT " + guideColumns + " FROM guides"
	if !includeInactive {
		q += " WHERE is_active = 1"
	}
	q += " ORDER BY first_name, last_name"
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Guide, 0)
	for rows.Next() {
		g, err := scanGuide(rows)
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

// Update writes the profile fields and flags of g.  The password hash is
// only written when non-empty.
func (r *GuideRepo) Update(ctx context.Context, g *model.Guide) error {
	g.Email = normalizeEmail(g.Email)
	q := "UPDATE guides SET email=?, first_name=?, last_name=?, phone=?, languages=?, is_admin=?, is_active=?, updated_at=?"
	args := []any{g.Email, g.FirstName, g.LastName, nullString(g.Phone), joinLanguages(g.Languages), g.IsAdmin, g.IsActive, time.Now().UTC()}
	if g.PasswordHash != "" {
		q += ", password_hash=?"
		args = append(args, g.PasswordHash)
	}
	q += " WHERE id=?"
	args = append(args, g.ID)
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows for a no-op update; confirm existence.
		if _, err := r.GetByID(ctx, g.ID); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate marks a guide inactive.
func (r *GuideRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE guides SET is_active=0, updated_at=? WHERE id=?", time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func scanGuideRow(row *sql.Row) (*model.Guide, error) {
	g, err := scanGuide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func scanGuide(s rowScanner) (*model.Guide, error) {
	var g model.Guide
	var phone sql.NullString
	var langs string
	if err := s.Scan(&g.ID, &g.Email, &g.PasswordHash, &g.FirstName, &g.LastName, &phone,
		&langs, &g.IsAdmin, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Phone = stringPtr(phone)
	g.Languages = splitLanguages(langs)
	return &g, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func joinLanguages(langs []string) string {
	clean := make([]string, 0, len(langs))
	for _, l := range langs {
		if l = strings.TrimSpace(l); l != "" {
			clean = append(clean, l)
		}
	}
	return strings.Join(clean, ",")
}

func splitLanguages(s string) []string {
	out := []string{}
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// isDuplicate detects MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
