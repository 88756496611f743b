// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/fees"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/repository"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/service"
)

// EventHandler holds all HTTP handlers for the registration API.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps the typed domain failures onto HTTP statuses.
// Capacity, sold-out, and duplicate outcomes are expected user-facing
// results; conflicts and misconfiguration are operator-facing.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrEventFull):
		writeError(w, http.StatusConflict, "the event is at capacity")
	case errors.Is(err, repository.ErrTierSoldOut):
		writeError(w, http.StatusConflict, "the selected tier is sold out")
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "you are already registered for this event")
	case errors.Is(err, repository.ErrStoreConflict):
		log.Printf("store conflict: %v", err)
		writeError(w, http.StatusServiceUnavailable, "temporary conflict, please retry")
	case errors.Is(err, fees.ErrRateConfig):
		log.Printf("fee configuration error: %v", err)
		writeError(w, http.StatusInternalServerError, "fee configuration error")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ─── Event handlers ───────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Registration handlers ────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// Performs the atomic, concurrency-safe admission for the event.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Register(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// Cancel handles POST /events/{id}/cancel
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Cancel(r.Context(), id, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

// ConfirmPayment handles POST /registrations/{id}/confirm-payment
func (h *EventHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.ConfirmPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// ─── Finance handlers ─────────────────────────────────────────────────────────

// EventFinance handles GET /events/{id}/finance
func (h *EventHandler) EventFinance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.SummarizeEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AppendPayout handles POST /events/{id}/payouts
func (h *EventHandler) AppendPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.AppendPayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	payout, err := h.svc.AppendPayout(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, payout)
}

// ListPayouts handles GET /events/{id}/payouts
func (h *EventHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := h.svc.ListPayouts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if payouts == nil {
		payouts = []model.Payout{}
	}

	writeJSON(w, http.StatusOK, payouts)
}

// QuoteFees handles GET /fees/quote?net=… | ?total=…
// With net it grosses the target amount up; with total it splits an
// all-inclusive price.
func (h *EventHandler) QuoteFees(w http.ResponseWriter, r *http.Request) {
	netParam := r.URL.Query().Get("net")
	totalParam := r.URL.Query().Get("total")

	switch {
	case netParam != "":
		net, err := decimal.NewFromString(netParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "net must be a decimal amount")
			return
		}
		quote, err := h.svc.QuoteGrossUp(net)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	case totalParam != "":
		total, err := decimal.NewFromString(totalParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "total must be a decimal amount")
			return
		}
		quote, err := h.svc.QuoteAbsorbed(total)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	default:
		writeError(w, http.StatusBadRequest, "either net or total is required")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
