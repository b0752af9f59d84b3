package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores timestamps as fixed-width UTC text so that string
// comparison and ORDER BY follow time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Bucket prefixes of sqliteTimeLayout.
const (
	sqliteHourLayout = "2006-01-02T15"
	sqliteDayLayout  = "2006-01-02"
)

// SQLiteStore implements Store on database/sql with the modernc SQLite
// or libsql driver.
type SQLiteStore struct {
	db *database.SQLiteDB
}

// NewSQLiteStore creates a store on db.
func NewSQLiteStore(db *database.SQLiteDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return wrapErr("ping", s.db.Health(ctx), classifySQLite)
}

// ===========================================
// LINKS
// ===========================================

// CreateLink inserts link.
func (s *SQLiteStore) CreateLink(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = link.CreatedAt
	}

	_, err := s.db.DB.ExecContext(ctx, query,
		link.ID.String(),
		link.ShortCode,
		link.OriginalURL,
		link.IsActive,
		link.IsCustomCode,
		formatTime(link.CreatedAt),
		formatTime(link.UpdatedAt),
	)
	return wrapErr("create link", err, classifySQLite)
}

// GetLinkByCode returns the link for shortCode, active or not.
func (s *SQLiteStore) GetLinkByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`
	return s.queryLink(ctx, "get link by code", query, shortCode)
}

// GetLinkByID returns the link with id.
func (s *SQLiteStore) GetLinkByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = ?`
	return s.queryLink(ctx, "get link by id", query, id.String())
}

// CodeExists reports whether shortCode is taken.
func (s *SQLiteStore) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	var n int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE short_code = ?`, shortCode,
	).Scan(&n)
	if err != nil {
		return false, wrapErr("check code", err, classifySQLite)
	}
	return n > 0, nil
}

// ListLinks returns links newest first.
func (s *SQLiteStore) ListLinks(ctx context.Context, opts models.ListLinksOptions) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links`
	if opts.ActiveOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := s.db.DB.QueryContext(ctx, query, clampLimit(opts.Limit, 50, 500), max(opts.Offset, 0))
	if err != nil {
		return nil, wrapErr("list links", err, classifySQLite)
	}
	defer rows.Close()

	links := make([]models.Link, 0)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, wrapErr("list links", err, classifySQLite)
		}
		links = append(links, *link)
	}
	return links, wrapErr("list links", rows.Err(), classifySQLite)
}

// SetLinkActive flips is_active and returns the updated row.
func (s *SQLiteStore) SetLinkActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*models.Link, error) {
	query := `
		UPDATE links SET is_active = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + linkColumns
	return s.queryLink(ctx, "set link active", query, active, formatTime(at), id.String())
}

// UpdateLinkURL replaces the destination and returns the updated row.
func (s *SQLiteStore) UpdateLinkURL(ctx context.Context, id uuid.UUID, originalURL string, at time.Time) (*models.Link, error) {
	query := `
		UPDATE links SET original_url = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + linkColumns
	return s.queryLink(ctx, "update link url", query, originalURL, formatTime(at), id.String())
}

// DeleteLink removes the link and its click events in one transaction.
func (s *SQLiteStore) DeleteLink(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("delete link", err, classifySQLite)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM click_events WHERE link_id = ?`, id.String()); err != nil {
		return nil, wrapErr("delete link", err, classifySQLite)
	}

	link, err := scanSQLiteLink(tx.QueryRowContext(ctx,
		`DELETE FROM links WHERE id = ? RETURNING `+linkColumns, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("delete link", err, classifySQLite)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("delete link", err, classifySQLite)
	}
	return link, nil
}

func (s *SQLiteStore) queryLink(ctx context.Context, op, query string, args ...any) (*models.Link, error) {
	link, err := scanSQLiteLink(s.db.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr(op, err, classifySQLite)
	}
	return link, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (*models.Link, error) {
	var (
		link               models.Link
		createdAt, updated string
	)
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.IsActive,
		&link.IsCustomCode,
		&createdAt,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if link.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &link, nil
}

// ===========================================
// CLICKS
// ===========================================

// InsertClick appends one click event.
func (s *SQLiteStore) InsertClick(ctx context.Context, event *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, link_id, clicked_at, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ClickedAt.IsZero() {
		event.ClickedAt = time.Now().UTC()
	}

	_, err := s.db.DB.ExecContext(ctx, query,
		event.ID.String(),
		event.LinkID.String(),
		formatTime(event.ClickedAt),
		event.IPAddress,
		event.UserAgent,
	)
	return wrapErr("insert click", err, classifySQLite)
}

// ===========================================
// ANALYTICS
// ===========================================

// CountClicks counts events matching q.
func (s *SQLiteStore) CountClicks(ctx context.Context, q models.ClickQuery) (int64, error) {
	where, args := sqliteClickFilter(q)
	var count int64
	err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM click_events`+where, args...).Scan(&count)
	if err != nil {
		return 0, wrapErr("count clicks", err, classifySQLite)
	}
	return count, nil
}

// ClickSeries groups events matching q into UTC buckets using prefixes
// of the stored timestamp text.
func (s *SQLiteStore) ClickSeries(ctx context.Context, q models.ClickQuery, bucket models.Bucket) ([]models.ClickBucket, error) {
	var prefixLen int
	var layout string
	switch bucket {
	case models.BucketHour:
		prefixLen, layout = len(sqliteHourLayout), sqliteHourLayout
	case models.BucketDay:
		prefixLen, layout = len(sqliteDayLayout), sqliteDayLayout
	default:
		return nil, fmt.Errorf("click series: unsupported bucket %q", bucket)
	}

	where, args := sqliteClickFilter(q)
	query := fmt.Sprintf(`SELECT substr(clicked_at, 1, %d) AS bucket, COUNT(*) FROM click_events`, prefixLen) +
		where + ` GROUP BY bucket ORDER BY bucket`

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("click series", err, classifySQLite)
	}
	defer rows.Close()

	series := make([]models.ClickBucket, 0)
	for rows.Next() {
		var (
			key string
			b   models.ClickBucket
		)
		if err := rows.Scan(&key, &b.Count); err != nil {
			return nil, wrapErr("click series", err, classifySQLite)
		}
		if b.Start, err = time.ParseInLocation(layout, key, time.UTC); err != nil {
			return nil, fmt.Errorf("click series: bad bucket %q: %w", key, err)
		}
		series = append(series, b)
	}
	return series, wrapErr("click series", rows.Err(), classifySQLite)
}

// RecentClicks returns the newest events matching q.
func (s *SQLiteStore) RecentClicks(ctx context.Context, q models.ClickQuery, limit int) ([]models.ClickEvent, error) {
	where, args := sqliteClickFilter(q)
	args = append(args, clampLimit(limit, 20, 1000))
	query := `SELECT id, link_id, clicked_at, ip_address, user_agent FROM click_events` + where +
		` ORDER BY clicked_at DESC, id DESC LIMIT ?`

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("recent clicks", err, classifySQLite)
	}
	defer rows.Close()

	events := make([]models.ClickEvent, 0)
	for rows.Next() {
		var (
			ev        models.ClickEvent
			clickedAt string
		)
		if err := rows.Scan(&ev.ID, &ev.LinkID, &clickedAt, &ev.IPAddress, &ev.UserAgent); err != nil {
			return nil, wrapErr("recent clicks", err, classifySQLite)
		}
		if ev.ClickedAt, err = parseTime(clickedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, wrapErr("recent clicks", rows.Err(), classifySQLite)
}

func sqliteClickFilter(q models.ClickQuery) (string, []any) {
	var conds []string
	var args []any
	if q.LinkID != nil {
		conds = append(conds, "link_id = ?")
		args = append(args, q.LinkID.String())
	}
	if !q.From.IsZero() {
		conds = append(conds, "clicked_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "clicked_at < ?")
		args = append(args, formatTime(q.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		// Rows written by other tools may use RFC 3339.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

// classifySQLite maps modernc result codes, and libsql error text, to
// the package sentinels.
func classifySQLite(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			switch code {
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				return ErrAlreadyExists
			case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
				return ErrNotFound
			}
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return ErrUnavailable
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrAlreadyExists
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrNotFound
	case strings.Contains(msg, "database is locked"), errors.Is(err, sql.ErrConnDone):
		return ErrUnavailable
	}
	return nil
}
