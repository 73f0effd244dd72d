// Package sqlite provides a SQLite-backed Campaign Repository.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/campaigns/sqlite/migrations"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/internal/utils"
	"github.com/pkg/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var _ campaigns.Repo = (*Store)(nil)

const campaignColumns = `id, owner_id, title, target_views, current_views, budget_cents,
	duration_days, video_url, status, created_at, updated_at, activated_at`

// Store persists campaigns in SQLite.
type Store struct {
	sqlDB   *sql.DB
	nowTime func() time.Time
}

type Option func(*Store)

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the store at path and applies the embedded migrations.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[sqlite.Open] storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlite.Open] open sqlite db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] ping sqlite db")
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] run migrations")
	}

	s := &Store{sqlDB: sqlDB, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*campaigns.Campaign, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`,
		ownerID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.ListByOwner] query")
	}
	return scanAll(rows)
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...campaigns.Status) ([]*campaigns.Campaign, error) {
	if len(statuses) == 0 {
		return []*campaigns.Campaign{}, nil
	}
	args := make([]any, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status IN (`+placeholders+`) ORDER BY created_at DESC, rowid DESC`,
		args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.ListByStatus] query")
	}
	return scanAll(rows)
}

func (s *Store) Get(ctx context.Context, id string) (*campaigns.Campaign, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrCampaignNotFound
		}
		return nil, errors.Wrap(err, "[Store.Get] scan")
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, ownerID string, fields campaigns.Fields) (*campaigns.Campaign, error) {
	c := campaigns.NewPending(uuid.New().String(), ownerID, fields, s.nowTime().UTC())
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Title, c.TargetViews, c.CurrentViews, c.Budget.Cents(),
		c.DurationDays, c.VideoURL, string(c.Status), toMillis(c.CreatedAt), toMillis(c.UpdatedAt), nil,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, errors.Wrap(apperrors.ErrInvalidField, err.Error())
		}
		return nil, errors.Wrap(err, "[Store.Create] insert")
	}
	c.CreatedAt = fromMillis(toMillis(c.CreatedAt))
	c.UpdatedAt = c.CreatedAt
	return &c, nil
}

// Update reads, applies and writes back in one transaction. The write is guarded on the
// status that was read, so a concurrent transition makes it fail with ErrInvalidTransition.
func (s *Store) Update(ctx context.Context, id string, u campaigns.Update) (*campaigns.Campaign, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Update] begin")
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanCampaign(tx.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrCampaignNotFound
		}
		return nil, errors.Wrap(err, "[Store.Update] scan")
	}
	updated, err := u.ApplyTo(*current, s.nowTime().UTC())
	if err != nil {
		return nil, err
	}

	var activatedAt any
	if updated.ActivatedAt != nil {
		activatedAt = toMillis(*updated.ActivatedAt)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET title = ?, target_views = ?, current_views = ?, budget_cents = ?,
		   duration_days = ?, video_url = ?, status = ?, updated_at = ?, activated_at = ?
		 WHERE id = ? AND status = ?`,
		updated.Title, updated.TargetViews, updated.CurrentViews, updated.Budget.Cents(),
		updated.DurationDays, updated.VideoURL, string(updated.Status), toMillis(updated.UpdatedAt), activatedAt,
		id, string(current.Status),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, errors.Wrap(apperrors.ErrInvalidField, err.Error())
		}
		return nil, errors.Wrap(err, "[Store.Update] update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errors.Wrap(apperrors.ErrInvalidTransition, "campaign changed concurrently")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "[Store.Update] commit")
	}

	updated.UpdatedAt = fromMillis(toMillis(updated.UpdatedAt))
	if updated.ActivatedAt != nil {
		updated.ActivatedAt = utils.Ptr(fromMillis(toMillis(*updated.ActivatedAt)))
	}
	return &updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*campaigns.Campaign, error) {
	var (
		c           campaigns.Campaign
		budget      int64
		status      string
		createdAt   int64
		updatedAt   int64
		activatedAt sql.NullInt64
	)
	if err := row.Scan(
		&c.ID, &c.OwnerID, &c.Title, &c.TargetViews, &c.CurrentViews, &budget,
		&c.DurationDays, &c.VideoURL, &status, &createdAt, &updatedAt, &activatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := campaigns.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	c.Status = parsed
	c.Budget = campaigns.Money(budget)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	if activatedAt.Valid {
		c.ActivatedAt = utils.Ptr(fromMillis(activatedAt.Int64))
	}
	return &c, nil
}

func scanAll(rows *sql.Rows) ([]*campaigns.Campaign, error) {
	defer rows.Close()
	out := make([]*campaigns.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan campaign")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate campaigns")
	}
	return out, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_CHECK, sqlite3lib.SQLITE_CONSTRAINT_NOTNULL,
			sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
