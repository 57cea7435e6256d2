package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/nkosarev/url-shortener/internal/models"
	"github.com/nkosarev/url-shortener/internal/service"
)

// URLService is the part of the core the transport adapter calls into.
type URLService interface {
	ShortenURL(ctx context.Context, req service.CreateURLRequest) (*models.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string, meta service.ClickMeta, recordClick bool) (*models.URL, error)
	GetURLStats(ctx context.Context, shortCode string) (*models.URL, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).
				Post("/", handleShortenURL(urlSvc, validate, baseURL))

			r.Get("/{shortCode}/stats", handleGetURLStats(urlSvc, baseURL))
		})
	})

	// The redirect routes live at the root so short links stay short.
	// HEAD is an existence check: no click is recorded, no event emitted.
	r.Get("/{shortCode}", handleRedirect(urlSvc, true))
	r.Head("/{shortCode}", handleRedirect(urlSvc, false))

	return r
}
