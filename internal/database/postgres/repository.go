package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nkosarev/url-shortener/internal/database"
	"github.com/nkosarev/url-shortener/internal/models"
)

type urlRecord struct {
	ID          int64        `db:"id"`
	ShortCode   string       `db:"short_code"`
	OriginalURL string       `db:"original_url"`
	ClickCount  int64        `db:"click_count"`
	IsCustom    bool         `db:"is_custom"`
	Status      string       `db:"status"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r *urlRecord) toURL() *models.URL {
	url := &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		ClickCount:  r.ClickCount,
		IsCustom:    r.IsCustom,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}

	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		url.ExpiresAt = &t
	}

	return url
}

// URLRepository is the authoritative store of short-code to URL-record
// mappings, backed by the urls table and its original_url index.
type URLRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db:  db,
		now: time.Now,
	}
}

// Create inserts a new record only if no record with that short code
// exists. The check and the insert are one atomic write: the UNIQUE
// constraint on short_code closes the race between concurrent
// creations, and the loser gets database.ErrShortCodeExists.
func (r *URLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, is_custom, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	var expiresAt sql.NullTime
	if url.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *url.ExpiresAt, Valid: true}
	}

	err := r.db.GetContext(ctx, rec, query,
		url.ShortCode, url.OriginalURL, url.IsCustom, url.Status, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.toURL(), nil
}

// GetByShortCode looks up a record by its primary key. A record whose
// expiration has passed is logically absent: the row stays in place for
// a separate reaping process, but the lookup reports
// database.ErrURLExpired instead of returning it.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	url := rec.toURL()
	if url.ExpiredAt(r.now()) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLExpired)
	}

	return url, nil
}

// FindByOriginalURL queries the secondary index on original_url for an
// auto-generated record. Custom-coded records are excluded: a caller
// may re-register the same URL under a custom code without disturbing
// auto-code deduplication.
func (r *URLRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.FindByOriginalURL"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE original_url = $1 AND is_custom = FALSE
		ORDER BY created_at
		LIMIT 1`

	err := r.db.GetContext(ctx, rec, query, originalURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to find url record: %w", op, err)
	}

	return rec.toURL(), nil
}

// IncrementClickCount atomically adds 1 to the click count using a
// server-side update rather than a read-modify-write, so concurrent
// increments never lose updates. Incrementing a nonexistent code is a
// no-op, not an error.
func (r *URLRepository) IncrementClickCount(ctx context.Context, shortCode string) error {
	const op = "database.postgres.URLRepository.IncrementClickCount"

	query := `UPDATE urls
		SET click_count = click_count + 1
		WHERE short_code = $1`

	if _, err := r.db.ExecContext(ctx, query, shortCode); err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	return nil
}
