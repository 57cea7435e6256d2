package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/nkosarev/url-shortener/internal/config"
	"github.com/nkosarev/url-shortener/internal/database/postgres"
	"github.com/nkosarev/url-shortener/internal/models"
	"github.com/nkosarev/url-shortener/internal/service"
	"github.com/nkosarev/url-shortener/pkg/response"
	"github.com/nkosarev/url-shortener/pkg/shortcode"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	api "github.com/nkosarev/url-shortener/internal/api/http"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const testBaseURL = "http://sho.rt"

// memEmitter collects published click events in memory so tests can
// assert on them without a Redis container.
type memEmitter struct {
	mu     sync.Mutex
	events []models.ClickEvent
}

func (e *memEmitter) Publish(_ context.Context, event models.ClickEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *memEmitter) drain() []models.ClickEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.events
	e.events = nil
	return events
}

type APITestSuite struct {
	suite.Suite
	pgCont  testcontainers.Container
	cfg     config.Postgres
	db      *sqlx.DB
	emitter *memEmitter
	urlSvc  *service.URLService
	logger  *httplog.Logger
	server  *httptest.Server
	e       *httpexpect.Expect
}

func (suite *APITestSuite) SetupSuite() {
	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "url_shortener"

	var err error
	suite.pgCont, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.pgCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := suite.pgCont.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container host: %v", err)
	}

	pgPort, err := suite.pgCont.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container port: %v", err)
	}

	suite.cfg = config.Postgres{
		User:     pgUser,
		Password: pgPassword,
		Host:     pgHost,
		Port:     pgPort.Int(),
		DB:       pgDB,
		SSLMode:  "disable",
	}

	suite.db, err = sqlx.Connect("pgx", suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.db.Close(); err != nil {
			suite.T().Fatalf("Failed to close database: %v", err)
		}
	})

	migrationPath := "file://../../../migrations"

	m, err := migrate.New(migrationPath, suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to initialize migrations: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			suite.T().Fatalf("Failed to rollback migrations: %v", err)
		}
	})

	urlRepo := postgres.NewURLRepository(suite.db)
	suite.emitter = new(memEmitter)
	suite.urlSvc = service.NewURLService(urlRepo, suite.emitter,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	router := api.NewRouter(suite.logger, suite.urlSvc, testBaseURL)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *APITestSuite) SetupSubTest() {
	ctx := context.Background()

	_, err := suite.db.ExecContext(ctx, `TRUNCATE TABLE urls RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}

	suite.emitter.drain()
}

func (suite *APITestSuite) insertURLRecord(url *models.URL) {
	query := `INSERT INTO urls(short_code, original_url, is_custom, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := suite.db.Exec(query,
		url.ShortCode, url.OriginalURL, url.IsCustom, url.Status, url.ExpiresAt); err != nil {
		suite.T().Fatalf("Failed to insert url record: %v", err)
	}
}

func (suite *APITestSuite) getClickCount(shortCode string) int64 {
	var count int64
	query := `SELECT click_count FROM urls WHERE short_code = $1`

	if err := suite.db.Get(&count, query, shortCode); err != nil {
		suite.T().Fatalf("Failed to get click count: %v", err)
	}

	return count
}

func (suite *APITestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *APITestSuite) TestShortenURL() {
	const path = "/api/v1/shorten"

	suite.Run("generated code has fixed length", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.HasValue("status", response.StatusSuccess)

		code := resp.Value("data").Object().Value("short_code").String().Raw()
		suite.Len(code, shortcode.Length)
	})

	suite.Run("same url yields same code", func() {
		first := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			Value("data").Object().Value("short_code").String().Raw()

		second := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			Value("data").Object().Value("short_code").String().Raw()

		suite.Equal(first, second)
	})

	suite.Run("custom code conflict", func() {
		rec := &models.URL{
			ShortCode:   "promo1",
			OriginalURL: "https://example.com",
			IsCustom:    true,
			Status:      models.StatusActive,
		}
		suite.insertURLRecord(rec)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"url":         "https://other.example",
				"custom_code": "promo1",
			}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ShortCodeConflictResponse.Message)
	})

	suite.Run("ttl sets expiration", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{
				"url":       "https://example.com",
				"ttl_hours": 1,
			}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.Value("data").Object().ContainsKey("expires_at")
	})
}

func (suite *APITestSuite) TestRedirect() {
	suite.Run("url not found", func() {
		suite.e.GET("/missing1").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("url expired", func() {
		expiresAt := time.Now().Add(-time.Hour)
		suite.insertURLRecord(&models.URL{
			ShortCode:   "lapsed12",
			OriginalURL: "https://example.com",
			Status:      models.StatusActive,
			ExpiresAt:   &expiresAt,
		})

		suite.e.GET("/lapsed12").
			Expect().
			Status(http.StatusGone).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.URLGoneResponse.Message)
	})

	suite.Run("success records click and emits event", func() {
		suite.insertURLRecord(&models.URL{
			ShortCode:   "abc12345",
			OriginalURL: "https://example.com/landing",
			Status:      models.StatusActive,
		})

		suite.e.GET("/abc12345").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com/landing")

		suite.urlSvc.Wait()

		suite.Equal(int64(1), suite.getClickCount("abc12345"))

		events := suite.emitter.drain()
		if suite.Len(events, 1) {
			suite.Equal("abc12345", events[0].ShortCode)
			suite.NotEmpty(events[0].EventID)
		}
	})

	suite.Run("head skips click recording", func() {
		suite.insertURLRecord(&models.URL{
			ShortCode:   "abc12345",
			OriginalURL: "https://example.com/landing",
			Status:      models.StatusActive,
		})

		suite.e.HEAD("/abc12345").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com/landing")

		suite.urlSvc.Wait()

		suite.Zero(suite.getClickCount("abc12345"))
		suite.Empty(suite.emitter.drain())
	})
}

func (suite *APITestSuite) TestGetURLStats() {
	const path = "/api/v1/shorten/{shortCode}/stats"

	suite.Run("url not found", func() {
		suite.e.GET(path, "missing1").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.insertURLRecord(&models.URL{
			ShortCode:   "abc12345",
			OriginalURL: "https://example.com",
			Status:      models.StatusActive,
		})

		suite.e.GET("/abc12345").
			Expect().
			Status(http.StatusMovedPermanently)

		suite.urlSvc.Wait()

		suite.e.GET(path, "abc12345").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("short_code", "abc12345").
			HasValue("click_count", 1)
	})
}

func TestAPITestSuite(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	suite.Run(t, new(APITestSuite))
}
