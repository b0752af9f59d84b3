package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
)

// PostgreSQL error codes we classify.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgQueryCanceled       = "57014"
	pgTooManyConnections  = "53300"
	pgAdminShutdown       = "57P01"
	pgCannotConnectNow    = "57P03"
)

const linkColumns = `id, short_code, original_url, is_active, is_custom_code, created_at, updated_at`

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *database.PostgresDB
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return wrapErr("ping", s.db.Health(ctx), classifyPostgres)
}

// ===========================================
// LINKS
// ===========================================

// CreateLink inserts link. The UNIQUE constraint on short_code decides
// races between concurrent creators.
func (s *PostgresStore) CreateLink(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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
	// TIMESTAMPTZ keeps microseconds; match what later reads return.
	link.CreatedAt = link.CreatedAt.Truncate(time.Microsecond)
	link.UpdatedAt = link.UpdatedAt.Truncate(time.Microsecond)

	_, err := s.db.Pool.Exec(ctx, query,
		link.ID,
		link.ShortCode,
		link.OriginalURL,
		link.IsActive,
		link.IsCustomCode,
		link.CreatedAt,
		link.UpdatedAt,
	)
	return wrapErr("create link", err, classifyPostgres)
}

// GetLinkByCode returns the link for shortCode, active or not.
func (s *PostgresStore) GetLinkByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	return s.queryLink(ctx, "get link by code", query, shortCode)
}

// GetLinkByID returns the link with id.
func (s *PostgresStore) GetLinkByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return s.queryLink(ctx, "get link by id", query, id)
}

// CodeExists reports whether shortCode is taken.
func (s *PostgresStore) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`, shortCode,
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("check code", err, classifyPostgres)
	}
	return exists, nil
}

// ListLinks returns links newest first.
func (s *PostgresStore) ListLinks(ctx context.Context, opts models.ListLinksOptions) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links`
	if opts.ActiveOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	rows, err := s.db.Pool.Query(ctx, query, clampLimit(opts.Limit, 50, 500), max(opts.Offset, 0))
	if err != nil {
		return nil, wrapErr("list links", err, classifyPostgres)
	}
	defer rows.Close()

	links := make([]models.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, wrapErr("list links", err, classifyPostgres)
		}
		links = append(links, *link)
	}
	return links, wrapErr("list links", rows.Err(), classifyPostgres)
}

// SetLinkActive flips is_active and returns the updated row.
func (s *PostgresStore) SetLinkActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*models.Link, error) {
	query := `
		UPDATE links SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + linkColumns
	return s.queryLink(ctx, "set link active", query, id, active, at.UTC())
}

// UpdateLinkURL replaces the destination and returns the updated row.
func (s *PostgresStore) UpdateLinkURL(ctx context.Context, id uuid.UUID, originalURL string, at time.Time) (*models.Link, error) {
	query := `
		UPDATE links SET original_url = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + linkColumns
	return s.queryLink(ctx, "update link url", query, id, originalURL, at.UTC())
}

// DeleteLink removes the link and its click events in one transaction.
func (s *PostgresStore) DeleteLink(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	var deleted *models.Link
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM click_events WHERE link_id = $1`, id); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `DELETE FROM links WHERE id = $1 RETURNING `+linkColumns, id)
		link, err := scanLink(row)
		if err != nil {
			return err
		}
		deleted = link
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("delete link", err, classifyPostgres)
	}
	return deleted, nil
}

func (s *PostgresStore) queryLink(ctx context.Context, op, query string, args ...any) (*models.Link, error) {
	link, err := scanLink(s.db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr(op, err, classifyPostgres)
	}
	return link, nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.IsActive,
		&link.IsCustomCode,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.CreatedAt = link.CreatedAt.UTC()
	link.UpdatedAt = link.UpdatedAt.UTC()
	return link, nil
}

// ===========================================
// CLICKS
// ===========================================

// InsertClick appends one click event. The foreign key rejects events
// for links that do not exist (or were deleted meanwhile).
func (s *PostgresStore) InsertClick(ctx context.Context, event *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, link_id, clicked_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ClickedAt.IsZero() {
		event.ClickedAt = time.Now().UTC()
	}
	event.ClickedAt = event.ClickedAt.Truncate(time.Microsecond)

	_, err := s.db.Pool.Exec(ctx, query,
		event.ID,
		event.LinkID,
		event.ClickedAt,
		event.IPAddress,
		event.UserAgent,
	)
	return wrapErr("insert click", err, classifyPostgres)
}

// ===========================================
// ANALYTICS
// ===========================================

// CountClicks counts events matching q.
func (s *PostgresStore) CountClicks(ctx context.Context, q models.ClickQuery) (int64, error) {
	where, args := pgClickFilter(q)
	var count int64
	err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM click_events`+where, args...).Scan(&count)
	if err != nil {
		return 0, wrapErr("count clicks", err, classifyPostgres)
	}
	return count, nil
}

// ClickSeries groups events matching q into UTC buckets.
func (s *PostgresStore) ClickSeries(ctx context.Context, q models.ClickQuery, bucket models.Bucket) ([]models.ClickBucket, error) {
	if !bucket.Valid() {
		return nil, fmt.Errorf("click series: unsupported bucket %q", bucket)
	}

	where, args := pgClickFilter(q)
	// The bucket width is one of two constants, never caller text.
	trunc := fmt.Sprintf(`date_trunc('%s', clicked_at AT TIME ZONE 'UTC')`, bucket)
	query := `SELECT ` + trunc + ` AS bucket, COUNT(*) FROM click_events` + where +
		` GROUP BY bucket ORDER BY bucket`

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("click series", err, classifyPostgres)
	}
	defer rows.Close()

	series := make([]models.ClickBucket, 0)
	for rows.Next() {
		var b models.ClickBucket
		if err := rows.Scan(&b.Start, &b.Count); err != nil {
			return nil, wrapErr("click series", err, classifyPostgres)
		}
		// timestamp without time zone scans as UTC wall time.
		b.Start = bucket.Truncate(b.Start)
		series = append(series, b)
	}
	return series, wrapErr("click series", rows.Err(), classifyPostgres)
}

// RecentClicks returns the newest events matching q.
func (s *PostgresStore) RecentClicks(ctx context.Context, q models.ClickQuery, limit int) ([]models.ClickEvent, error) {
	where, args := pgClickFilter(q)
	args = append(args, clampLimit(limit, 20, 1000))
	query := `SELECT id, link_id, clicked_at, ip_address, user_agent FROM click_events` + where +
		fmt.Sprintf(` ORDER BY clicked_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("recent clicks", err, classifyPostgres)
	}
	defer rows.Close()

	events := make([]models.ClickEvent, 0)
	for rows.Next() {
		var ev models.ClickEvent
		if err := rows.Scan(&ev.ID, &ev.LinkID, &ev.ClickedAt, &ev.IPAddress, &ev.UserAgent); err != nil {
			return nil, wrapErr("recent clicks", err, classifyPostgres)
		}
		ev.ClickedAt = ev.ClickedAt.UTC()
		events = append(events, ev)
	}
	return events, wrapErr("recent clicks", rows.Err(), classifyPostgres)
}

// pgClickFilter renders q as a WHERE clause with $n placeholders.
func pgClickFilter(q models.ClickQuery) (string, []any) {
	var conds []string
	var args []any
	if q.LinkID != nil {
		args = append(args, *q.LinkID)
		conds = append(conds, fmt.Sprintf("link_id = $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From.UTC())
		conds = append(conds, fmt.Sprintf("clicked_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To.UTC())
		conds = append(conds, fmt.Sprintf("clicked_at < $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// classifyPostgres maps driver errors to the package sentinels.
func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgQueryCanceled, pgTooManyConnections, pgAdminShutdown, pgCannotConnectNow:
			return ErrUnavailable
		}
		return nil
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return ErrUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}
	return nil
}
