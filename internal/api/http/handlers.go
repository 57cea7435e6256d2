package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/nkosarev/url-shortener/internal/database"
	"github.com/nkosarev/url-shortener/internal/models"
	"github.com/nkosarev/url-shortener/internal/service"
	"github.com/nkosarev/url-shortener/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type shortenRequest struct {
	URL        string `json:"url" validate:"required,url"`
	CustomCode string `json:"custom_code,omitempty" validate:"omitempty,min=3,max=20"`
	TTLHours   int    `json:"ttl_hours,omitempty" validate:"omitempty,min=1,max=87600"`
}

type urlResponse struct {
	ID         int64      `json:"id"`
	ShortCode  string     `json:"short_code"`
	ShortURL   string     `json:"short_url"`
	URL        string     `json:"url"`
	IsCustom   bool       `json:"is_custom"`
	ClickCount int64      `json:"click_count"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func toURLResponse(baseURL string, url *models.URL) urlResponse {
	return urlResponse{
		ID:         url.ID,
		ShortCode:  url.ShortCode,
		ShortURL:   fmt.Sprintf("%s/%s", baseURL, url.ShortCode),
		URL:        url.OriginalURL,
		IsCustom:   url.IsCustom,
		ClickCount: url.ClickCount,
		CreatedAt:  url.CreatedAt,
		ExpiresAt:  url.ExpiresAt,
	}
}

// inputErrorMessage maps the service's validation sentinels to messages
// safe to show the caller.
func inputErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidOriginalURL):
		return "URL must use the http or https scheme.", true
	case errors.Is(err, service.ErrInvalidCustomCode):
		return "Custom code must be 3-20 characters of letters, numbers, underscores or hyphens.", true
	case errors.Is(err, service.ErrInvalidTTL):
		return fmt.Sprintf("ttl_hours must be between 1 and %d.", service.MaxTTLHours), true
	}
	return "", false
}

func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, err := svc.ShortenURL(r.Context(), service.CreateURLRequest{
			OriginalURL: req.URL,
			CustomCode:  req.CustomCode,
			TTLHours:    req.TTLHours,
		})
		if err != nil {
			if msg, ok := inputErrorMessage(err); ok {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Response{
					Status:  response.StatusError,
					Error:   "Validation Error",
					Message: msg,
				})
				return
			}

			if errors.Is(err, database.ErrShortCodeExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeConflictResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(baseURL, url)))
	}
}

func handleRedirect(svc URLService, recordClick bool) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		meta := service.ClickMeta{
			ClientIP:  r.RemoteAddr,
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
		}

		url, err := svc.ResolveShortCode(r.Context(), shortCode, meta, recordClick)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			if errors.Is(err, database.ErrURLExpired) {
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLGoneResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusMovedPermanently)
	}
}

func handleGetURLStats(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLStats(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			if errors.Is(err, database.ErrURLExpired) {
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLGoneResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(baseURL, url)))
	}
}
