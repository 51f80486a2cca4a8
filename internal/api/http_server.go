package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coldbook/internal/config"
	"coldbook/internal/domain"
	"coldbook/internal/interval"
	"coldbook/internal/metrics"
	"coldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the reservation engine over REST.
type HTTPServer struct {
	cfg      *config.APIConfig
	bookings domain.BookingService
	registry domain.ResourceDirectory
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg *config.APIConfig,
	bookings domain.BookingService,
	registry domain.ResourceDirectory,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, bookings: bookings, registry: registry, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservationByID)
	mux.HandleFunc("/api/v1/equipment", srv.handleEquipment)
	mux.HandleFunc("/api/v1/equipment/", srv.handleEquipmentByID)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseReservationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := s.bookings.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		reservation, err := s.bookings.Get(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)

	case http.MethodPut:
		var req models.UpdateReservationRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		updated, err := s.bookings.Update(r.Context(), id, req)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.bookings.Delete(r.Context(), id); err != nil {
			s.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleEquipment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		equipment, err := s.registry.ListEquipment(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if equipment == nil {
			equipment = []*models.Equipment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"equipment": equipment})

	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			SortOrder   int64  `json:"sort_order"`
		}
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		eq := &models.Equipment{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			SortOrder:   req.SortOrder,
			IsActive:    true,
		}
		if err := s.registry.CreateEquipment(r.Context(), eq); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, eq)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleEquipmentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/equipment/")

	if id, ok := strings.CutSuffix(rest, "/availability"); ok {
		s.handleAvailability(w, r, id)
		return
	}

	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.registry.DeleteEquipment(r.Context(), rest); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAvailability is a read-only conflict probe: it reports whether a
// proposed interval is free and, when taken, which reservation blocks it.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	iv, err := parseQueryInterval(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflict, err := s.bookings.CheckAvailability(r.Context(), id, iv)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := map[string]any{"available": conflict == nil}
	if conflict != nil {
		resp["conflicts_with"] = conflict.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseReservationFilter(r *http.Request) (models.ReservationFilter, error) {
	q := r.URL.Query()
	filter := models.ReservationFilter{
		ResourceID: strings.TrimSpace(q.Get("resource_id")),
		OwnerID:    strings.TrimSpace(q.Get("owner_id")),
	}
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		for _, s := range strings.Split(status, ",") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				filter.Statuses = append(filter.Statuses, trimmed)
			}
		}
	}

	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		t, _, err := interval.ParseBound(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid start: %w", err)
		}
		filter.Start = t
	}
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		t, p, err := interval.ParseBound(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid end: %w", err)
		}
		// A bare end date keeps that whole day in range.
		if p == interval.PrecisionDate {
			t = t.AddDate(0, 0, 1)
		}
		filter.End = t
	}
	return filter, nil
}

func parseQueryInterval(rawStart, rawEnd string) (interval.Interval, error) {
	if strings.TrimSpace(rawStart) == "" {
		return interval.Interval{}, fmt.Errorf("start is required")
	}

	start, prec, err := interval.ParseBound(strings.TrimSpace(rawStart))
	if err != nil {
		return interval.Interval{}, fmt.Errorf("invalid start: %w", err)
	}

	var end time.Time
	if raw := strings.TrimSpace(rawEnd); raw != "" {
		var endPrec interval.Precision
		end, endPrec, err = interval.ParseBound(raw)
		if err != nil {
			return interval.Interval{}, fmt.Errorf("invalid end: %w", err)
		}
		if endPrec == interval.PrecisionDateTime {
			prec = interval.PrecisionDateTime
		}
	}

	iv, err := interval.Normalize(start, end, prec)
	if err != nil {
		return interval.Interval{}, err
	}
	return iv, nil
}

// writeDomainError translates engine errors into the HTTP contract:
// 400 for input problems, 404 for unknown ids, 409 for conflicts,
// 429 for throttled owners.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var (
		missing    *domain.MissingFieldError
		invalid    *domain.InvalidIntervalError
		validation *domain.ValidationError
		conflict   *domain.ConflictError
	)

	switch {
	case errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, missing.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          conflict.Error(),
			"conflicts_with": conflict.ConflictsWith,
		})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrResourceInactive):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicateResource):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r.URL.Path), strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel collapses ids so the metric cardinality stays bounded.
func endpointLabel(path string) string {
	switch {
	case path == "/api/v1/reservations":
		return "reservations"
	case strings.HasPrefix(path, "/api/v1/reservations/"):
		return "reservation"
	case path == "/api/v1/equipment":
		return "equipment"
	case strings.HasSuffix(path, "/availability"):
		return "availability"
	case strings.HasPrefix(path, "/api/v1/equipment/"):
		return "equipment_item"
	case path == "/healthz":
		return "healthz"
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
