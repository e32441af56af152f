package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/core/service"
	"github.com/rl1809/benefit-transfer/internal/metrics"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	benefits  *service.BenefitService
	transfers service.TransferExecutor
	logger    *zap.Logger
}

type BenefitHTTPRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Value       *decimal.Decimal `json:"value"`
	Active      *bool            `json:"active"`
}

type BenefitHTTPResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Active      bool            `json:"active"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TransferHTTPRequest struct {
	FromID string          `json:"from_id"`
	ToID   string          `json:"to_id"`
	Amount decimal.Decimal `json:"amount"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(benefits *service.BenefitService, transfers service.TransferExecutor, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{benefits: benefits, transfers: transfers, logger: logger}
}

// Routes mounts the API, health and metrics endpoints.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/benefits", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/transfer", h.Transfer)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

func toResponse(b domain.Benefit) BenefitHTTPResponse {
	return BenefitHTTPResponse{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Value:       b.Value,
		Active:      b.Active,
		Version:     b.Version,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func (req BenefitHTTPRequest) input() domain.BenefitInput {
	return domain.BenefitInput{
		Name:        req.Name,
		Description: req.Description,
		Value:       req.Value,
		Active:      req.Active,
	}
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	benefits, err := h.benefits.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]BenefitHTTPResponse, 0, len(benefits))
	for _, b := range benefits {
		out = append(out, toResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.benefits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*b))
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BenefitHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	b, err := h.benefits.Create(r.Context(), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(*b))
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req BenefitHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	b, err := h.benefits.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*b))
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.benefits.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	err := h.transfers.Transfer(r.Context(), domain.TransferRequest{
		FromID:         req.FromID,
		ToID:           req.ToID,
		Amount:         req.Amount,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorHTTPResponse{Success: false, Message: message})
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrParticipantNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInactiveParticipant), errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrConcurrentUpdateConflict):
		return http.StatusConflict, "concurrent update, try again"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
