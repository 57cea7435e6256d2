package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/nkosarev/url-shortener/internal/database"
	"github.com/nkosarev/url-shortener/internal/models"
	"github.com/nkosarev/url-shortener/pkg/shortcode"
)

// MaxTTLHours caps requested lifetimes at ten years.
const MaxTTLHours = 87600

// sideEffectTimeout bounds the click-count increment and the analytics
// publish that run after a redirect has already been decided.
const sideEffectTimeout = 5 * time.Second

var (
	// ErrInvalidOriginalURL is returned when the URL to shorten is not a
	// well-formed http or https URL.
	ErrInvalidOriginalURL = errors.New("original url must be a valid http or https url")
	// ErrInvalidCustomCode is returned when a caller-supplied code violates
	// the length or charset rules.
	ErrInvalidCustomCode = errors.New("invalid custom code")
	// ErrInvalidTTL is returned when ttl_hours is outside 1..MaxTTLHours.
	ErrInvalidTTL = fmt.Errorf("ttl_hours must be between 1 and %d", MaxTTLHours)
	// ErrMaxRetriesExceeded is returned when the maximum number of retries
	// for generating a short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// URLRepository defines the store operations the service needs.
type URLRepository interface {
	// Create inserts a new record only if its short code is free;
	// a losing race returns database.ErrShortCodeExists.
	Create(ctx context.Context, url *models.URL) (*models.URL, error)

	// GetByShortCode retrieves a record by short code. Lapsed records
	// yield database.ErrURLExpired, missing ones database.ErrURLNotFound.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// FindByOriginalURL retrieves the auto-generated record for a URL via
	// the secondary index, or database.ErrURLNotFound.
	FindByOriginalURL(ctx context.Context, originalURL string) (*models.URL, error)

	// IncrementClickCount atomically adds 1 to a record's click count.
	IncrementClickCount(ctx context.Context, shortCode string) error
}

// ClickEmitter publishes click events to the analytics sink.
type ClickEmitter interface {
	Publish(ctx context.Context, event models.ClickEvent) error
}

// CreateURLRequest carries the normalized inputs of a create operation.
type CreateURLRequest struct {
	OriginalURL string
	// CustomCode is the caller-supplied code; empty means auto-generate.
	CustomCode string
	// TTLHours is the requested lifetime in hours; zero means never expires.
	TTLHours int
}

// ClickMeta carries the request attributes recorded with a click.
type ClickMeta struct {
	ClientIP  string
	UserAgent string
	Referer   string
}

// URLService implements the create, resolve and stats operations on top
// of the URL repository and the analytics emitter.
type URLService struct {
	repo    URLRepository
	emitter ClickEmitter
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewURLService creates a new URLService. The logger receives warnings
// from failed click side effects.
func NewURLService(repo URLRepository, emitter ClickEmitter, logger *slog.Logger) *URLService {
	return &URLService{
		repo:    repo,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// ShortenURL stores a mapping for the original URL and returns its record.
//
// Auto-generated creations deduplicate by original URL: if an
// auto-coded record already exists it is returned as is, and the store
// keeps exactly one record for that URL. Custom-coded creations skip
// deduplication, so a caller may re-register the same URL under a new
// custom code. Code collisions are detected by the store's conditional
// insert; the auto path regenerates and retries, the custom path
// surfaces the conflict.
func (s *URLService) ShortenURL(ctx context.Context, req CreateURLRequest) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"
	const maxRetries = 5

	if err := validateOriginalURL(req.OriginalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.TTLHours < 0 || req.TTLHours > MaxTTLHours {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTTL)
	}

	var expiresAt *time.Time
	if req.TTLHours > 0 {
		t := s.now().Add(time.Duration(req.TTLHours) * time.Hour)
		expiresAt = &t
	}

	if req.CustomCode != "" {
		if err := shortcode.ValidateCustom(req.CustomCode); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCustomCode, err)
		}

		url, err := s.repo.Create(ctx, &models.URL{
			ShortCode:   req.CustomCode,
			OriginalURL: req.OriginalURL,
			IsCustom:    true,
			Status:      models.StatusActive,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	existing, err := s.repo.FindByOriginalURL(ctx, req.OriginalURL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrURLNotFound) {
		return nil, fmt.Errorf("%s: failed to check for existing url: %w", op, err)
	}

	for i := 0; i < maxRetries; i++ {
		code, err := shortcode.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.repo.Create(ctx, &models.URL{
			ShortCode:   code,
			OriginalURL: req.OriginalURL,
			Status:      models.StatusActive,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortCode retrieves the record behind a short code for
// redirection. When recordClick is set, the click-count increment and
// the analytics publish run as detached side effects: their failures
// are logged and never change the returned result. Existence checks
// (HEAD semantics) pass recordClick=false and leave no trace.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string, meta ClickMeta, recordClick bool) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if recordClick {
		s.recordClick(shortCode, meta)
	}

	return url, nil
}

// recordClick runs the side effects of a resolution in the background.
// The goroutine gets its own deadline detached from the request context:
// a caller whose response is already decided must not be able to cancel
// the increment, and a slow increment must not delay the caller.
func (s *URLService) recordClick(shortCode string, meta ClickMeta) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := s.repo.IncrementClickCount(ctx, shortCode); err != nil {
			s.logger.Warn("failed to increment click count",
				slog.String("short_code", shortCode),
				slog.Any("err", err),
			)
		}

		event := models.ClickEvent{
			ShortCode: shortCode,
			Timestamp: s.now().UTC(),
			ClientIP:  meta.ClientIP,
			UserAgent: meta.UserAgent,
			Referer:   meta.Referer,
		}

		if err := s.emitter.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish click event",
				slog.String("short_code", shortCode),
				slog.Any("err", err),
			)
		}
	}()
}

// GetURLStats retrieves the record behind a short code, including its
// click count, without recording a click.
func (s *URLService) GetURLStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLStats"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// Wait blocks until all in-flight click side effects have finished.
// Called during shutdown so pending increments and events drain before
// the process exits.
func (s *URLService) Wait() {
	s.wg.Wait()
}

func validateOriginalURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidOriginalURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidOriginalURL
	}

	return nil
}
