package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/leadcapture/internal/observability/metrics"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Response codes returned in the "code" field.
const (
	CodeInvalidEmail = "invalid_email"
	CodeInvalidPhone = "invalid_phone"
	CodeInvalidInput = "invalid_input"
	CodeInvalidBody  = "invalid_body"
	CodeStoreError   = "store_error"
)

// Response statuses returned in the "status" field.
const (
	StatusInserted  = "inserted"
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusExists    = "exists"
)

// Listener is notified after a submission created or updated a lead.
type Listener interface {
	Name() string
	LeadCaptured(ctx context.Context, res *Result) error
}

// SubmitResponse is the JSON body of every intake response.
type SubmitResponse struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	ErrorID string `json:"error_id,omitempty"`
}

// waitlistInput is the narrower body accepted by the waitlist form.
type waitlistInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Source   string `json:"source"`
	Honeypot string `json:"honeypot"`
	Website  string `json:"website"`
	HP       string `json:"hp"`
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Validator  *Validator
	Reconciler *Reconciler
	// Lister serves the admin endpoints; nil when the store cannot list.
	Lister    Lister
	Listeners []Listener
	Metrics   *metrics.LeadMetrics
	Gatherer  prometheus.Gatherer
	Messages  Messages
	Logger    *logging.Logger
}

// Handler handles HTTP requests for leads
type Handler struct {
	validator  *Validator
	reconciler *Reconciler
	lister     Lister
	listeners  []Listener
	metrics    *metrics.LeadMetrics
	gatherer   prometheus.Gatherer
	messages   Messages
	logger     *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Validator == nil || cfg.Reconciler == nil {
		panic("leads: validator and reconciler required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = MessagesFor("es")
	}
	return &Handler{
		validator:  cfg.Validator,
		reconciler: cfg.Reconciler,
		lister:     cfg.Lister,
		listeners:  cfg.Listeners,
		metrics:    cfg.Metrics,
		gatherer:   cfg.Gatherer,
		messages:   cfg.Messages,
		logger:     cfg.Logger,
	}
}

// CanList reports whether the admin listing endpoints are backed by the store.
func (h *Handler) CanList() bool {
	return h.lister != nil
}

// SubmitLead handles POST /api/leads requests
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var raw RawInput
	if err := decodeBody(w, r, &raw); err != nil {
		h.logger.Warn("failed to decode lead request", "error", err)
		h.metrics.ObserveSubmission("leads", CodeInvalidBody)
		h.writeJSON(w, http.StatusBadRequest, SubmitResponse{Error: h.messages.InvalidBody, Code: CodeInvalidBody})
		return
	}

	h.submit(w, r, "leads", raw, func(o Outcome) (string, string) {
		switch o {
		case OutcomeUpdated:
			return StatusUpdated, h.messages.Updated
		case OutcomeUnchanged:
			return StatusUnchanged, h.messages.Unchanged
		default:
			return StatusInserted, h.messages.Inserted
		}
	})
}

// JoinWaitlist handles POST /api/waitlist requests. Only name and email are read.
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var in waitlistInput
	if err := decodeBody(w, r, &in); err != nil {
		h.logger.Warn("failed to decode waitlist request", "error", err)
		h.metrics.ObserveSubmission("waitlist", CodeInvalidBody)
		h.writeJSON(w, http.StatusBadRequest, SubmitResponse{Error: h.messages.InvalidBody, Code: CodeInvalidBody})
		return
	}

	raw := RawInput{Name: in.Name, Email: in.Email, Source: in.Source, Honeypot: in.Honeypot, Website: in.Website, HP: in.HP}
	h.submit(w, r, "waitlist", raw, func(o Outcome) (string, string) {
		if o == OutcomeCreated || o == OutcomeSuppressed {
			return StatusInserted, h.messages.WaitlistInserted
		}
		return StatusExists, h.messages.WaitlistExists
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, endpoint string, raw RawInput, describe func(Outcome) (string, string)) {
	raw.Source = ResolveSource(raw.Source, r.Referer(), r.Header.Get("Origin"))

	rec, err := h.validator.Validate(raw)
	switch {
	case errors.Is(err, ErrSuppressed):
		// Answer like a real signup so the trap stays invisible.
		h.logger.Info("honeypot submission suppressed", "endpoint", endpoint, "remote_ip", r.RemoteAddr)
		h.metrics.ObserveSubmission(endpoint, string(OutcomeSuppressed))
		status, msg := describe(OutcomeSuppressed)
		h.writeJSON(w, http.StatusOK, SubmitResponse{OK: true, Status: status, Message: msg})
		return
	case err != nil:
		code, msg := h.rejection(err)
		h.logger.Info("lead submission rejected", "endpoint", endpoint, "code", code)
		h.metrics.ObserveSubmission(endpoint, code)
		h.writeJSON(w, http.StatusBadRequest, SubmitResponse{Error: msg, Code: code})
		return
	}

	start := time.Now()
	res, err := h.reconciler.Reconcile(r.Context(), rec)
	if err != nil {
		errID := uuid.NewString()
		h.logger.Error("failed to persist lead", "error", err, "error_id", errID, "endpoint", endpoint)
		h.metrics.ObserveSubmission(endpoint, CodeStoreError)
		h.metrics.ObserveReconcileLatency(CodeStoreError, time.Since(start).Seconds())
		h.writeJSON(w, http.StatusInternalServerError, SubmitResponse{Error: h.messages.ServerError, Code: CodeStoreError, ErrorID: errID})
		return
	}
	h.metrics.ObserveSubmission(endpoint, string(res.Outcome))
	h.metrics.ObserveReconcileLatency(string(res.Outcome), time.Since(start).Seconds())
	h.logger.Info("lead reconciled", "endpoint", endpoint, "id", res.Lead.ID, "outcome", res.Outcome)

	if res.Outcome != OutcomeUnchanged {
		h.notify(r.Context(), res)
	}

	status, msg := describe(res.Outcome)
	h.writeJSON(w, http.StatusOK, SubmitResponse{OK: true, Status: status, Message: msg})
}

// notify runs listeners in order. Failures are logged and never change the response.
func (h *Handler) notify(ctx context.Context, res *Result) {
	for _, l := range h.listeners {
		if err := l.LeadCaptured(ctx, res); err != nil {
			h.logger.Warn("lead listener failed", "listener", l.Name(), "id", res.Lead.ID, "error", err)
			h.metrics.ObserveListenerFailure(l.Name())
		}
	}
}

func (h *Handler) rejection(err error) (string, string) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return CodeInvalidEmail, h.messages.InvalidEmail
	case errors.Is(err, ErrInvalidPhone):
		return CodeInvalidPhone, h.messages.InvalidPhone(h.validator.Policy())
	default:
		return CodeInvalidInput, h.messages.InvalidInput
	}
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*StoredLead `json:"leads"`
	Count  int           `json:"count"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		http.Error(w, "listing not supported by this store", http.StatusNotImplemented)
		return
	}

	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	leads, err := h.lister.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/leads/{leadID} requests
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		http.Error(w, "listing not supported by this store", http.StatusNotImplemented)
		return
	}
	id := chi.URLParam(r, "leadID")
	lead, err := h.lister.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get lead", "error", err, "id", id)
		http.Error(w, "failed to get lead", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, lead)
}

// Stats handles GET /admin/leads/stats with submission counts since process start.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, metrics.SnapshotSubmissions(h.gatherer))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
