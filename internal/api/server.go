package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/metrics"
	"github.com/JakeFAU/adcatalog/internal/storage"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// CatalogReader is the read side of the catalog.
type CatalogReader interface {
	Ads() []catalog.AdRecord
	Content() []catalog.ContentRecord
	Ad(id string) (catalog.AdRecord, bool)
	ContentByID(id int64) (catalog.ContentRecord, bool)
	AdPath(id string) string
	CoverPath(id int64) string
}

// ResourceReader fetches stored image bytes.
type ResourceReader interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// EventLister returns recent catalog events, newest first.
type EventLister interface {
	Recent(ctx context.Context, limit int) ([]catalog.Event, error)
}

// Server wires HTTP handlers to the catalog.
type Server struct {
	router  chi.Router
	catalog CatalogReader
	store   ResourceReader
	events  EventLister
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. events may be nil,
// in which case /v1/events is not registered.
func NewServer(cat CatalogReader, store ResourceReader, events EventLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog: cat,
		store:   store,
		events:  events,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ads", s.listAds)
		r.Get("/ads/{id}/image", s.adImage)
		r.Get("/content", s.listContent)
		r.Get("/content/{id}/cover", s.contentCover)
		if events != nil {
			r.Get("/events", s.listEvents)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type adView struct {
	ID        string `json:"id"`
	Alt       string `json:"alt"`
	Link      string `json:"link"`
	Timestamp int64  `json:"timestamp"`
	Image     string `json:"image"`
}

type contentView struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	Tags          []string `json:"tags"`
	AverageRating float64  `json:"average_rating"`
	AuthorID      int64    `json:"author_id"`
	AuthorName    string   `json:"author_name"`
	Followers     int64    `json:"followers"`
	Favorites     int64    `json:"favorites"`
	Ratings       int64    `json:"ratings"`
	TotalViews    int64    `json:"total_views"`
	WordCount     int64    `json:"word_count"`
	PageCount     int64    `json:"page_count"`
	Timestamp     int64    `json:"timestamp"`
	Cover         string   `json:"cover"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAds(w http.ResponseWriter, _ *http.Request) {
	ads := s.catalog.Ads()
	out := make([]adView, 0, len(ads))
	for _, ad := range ads {
		out = append(out, adView{
			ID:        ad.ID,
			Alt:       ad.Alt,
			Link:      ad.Link,
			Timestamp: ad.Timestamp,
			Image:     "/v1/ads/" + ad.ID + "/image",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) listContent(w http.ResponseWriter, _ *http.Request) {
	records := s.catalog.Content()
	out := make([]contentView, 0, len(records))
	for _, rec := range records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, contentView{
			ID:            rec.ID,
			Title:         rec.Title,
			Slug:          rec.Slug,
			Description:   rec.Description,
			Status:        rec.Status,
			Tags:          tags,
			AverageRating: rec.AverageRating,
			AuthorID:      rec.AuthorID,
			AuthorName:    rec.AuthorName,
			Followers:     rec.Followers,
			Favorites:     rec.Favorites,
			Ratings:       rec.Ratings,
			TotalViews:    rec.TotalViews,
			WordCount:     rec.WordCount,
			PageCount:     rec.PageCount,
			Timestamp:     rec.Timestamp,
			Cover:         "/v1/content/" + rec.Key() + "/cover",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) adImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.catalog.Ad(id); !ok {
		writeError(w, http.StatusNotFound, "ad not found")
		return
	}
	s.servePNG(w, r, s.catalog.AdPath(id))
}

func (s *Server) contentCover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content id must be an integer")
		return
	}
	if _, ok := s.catalog.ContentByID(id); !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	s.servePNG(w, r, s.catalog.CoverPath(id))
}

func (s *Server) servePNG(w http.ResponseWriter, r *http.Request, name string) {
	data, err := s.store.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		s.logger.Error("read image failed", zap.String("path", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("write image failed", zap.String("path", name), zap.Error(err))
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}
	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list events failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []catalog.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
