package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billing/internal/domain"
	"billing/internal/service"
)

const (
	defaultPassLimit    = 20
	defaultScheduleSize = 3
	maxScheduleSize     = 24
)

// BillingHandler handles operator HTTP requests.
type BillingHandler struct {
	billingService *service.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService *service.BillingService, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{billingService: billingService, logger: logger}
}

// InvoiceResponse is the HTTP response for invoice operations.
type InvoiceResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
}

// FailedBillingResponse is one entry of an invoice's failure history.
type FailedBillingResponse struct {
	ID        string    `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEventResponse is one entry of an invoice's audit trail.
type AuditEventResponse struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Reason   string    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
	PrevHash string    `json:"prev_hash"`
	Hash     string    `json:"hash"`
}

// AuditTrailResponse is the HTTP response for an invoice's audit trail.
type AuditTrailResponse struct {
	InvoiceID   int64                `json:"invoice_id"`
	Verified    bool                 `json:"verified"`
	VerifyError string               `json:"verify_error,omitempty"`
	Events      []AuditEventResponse `json:"events"`
}

// PassErrorResponse reports a pass that stopped early along with what it had
// already processed.
type PassErrorResponse struct {
	Error   string              `json:"error"`
	Summary service.PassSummary `json:"summary"`
}

// ForceRun handles POST /v1/billing/force
func (h *BillingHandler) ForceRun(c *gin.Context) {
	summary, err := h.billingService.ForceRunNow(c.Request.Context())
	if err != nil {
		h.logger.Error("forced billing pass failed", zap.String("pass_id", summary.PassID), zap.Error(err))
		_ = c.Error(err)
		c.JSON(mapErrorToHTTPStatus(err), PassErrorResponse{Error: err.Error(), Summary: summary})
		return
	}
	respondJSON(c, http.StatusOK, summary)
}

// ListPasses handles GET /v1/billing/passes
func (h *BillingHandler) ListPasses(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPassLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	passes, err := h.billingService.RecentPasses(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, passes)
}

// Schedule handles GET /v1/billing/schedule
func (h *BillingHandler) Schedule(c *gin.Context) {
	count, err := queryInt(c, "count", defaultScheduleSize)
	if err != nil || count > maxScheduleSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("count must be between 1 and %d", maxScheduleSize)})
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"upcoming": h.billingService.UpcomingRuns(count)})
}

// GetInvoice handles GET /v1/invoices/:id
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	invoice, err := h.billingService.Invoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toInvoiceResponse(invoice))
}

// Requeue handles POST /v1/invoices/:id/requeue
func (h *BillingHandler) Requeue(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	invoice, err := h.billingService.ForceRequeue(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toInvoiceResponse(invoice))
}

// ListFailures handles GET /v1/invoices/:id/failures
func (h *BillingHandler) ListFailures(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	failures, err := h.billingService.FailedBillings(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]FailedBillingResponse, len(failures))
	for i, fb := range failures {
		response[i] = FailedBillingResponse{
			ID:        fb.ID,
			InvoiceID: fb.InvoiceID,
			Reason:    string(fb.Reason),
			Message:   fb.Message,
			Timestamp: fb.Timestamp,
		}
	}
	respondJSON(c, http.StatusOK, response)
}

// AuditTrail handles GET /v1/invoices/:id/audit
func (h *BillingHandler) AuditTrail(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}

	trail, err := h.billingService.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	events := make([]AuditEventResponse, len(trail.Events))
	for i, e := range trail.Events {
		events[i] = AuditEventResponse{
			ID:       e.ID,
			Kind:     string(e.Kind),
			Reason:   string(e.Reason),
			Message:  e.Message,
			At:       e.At,
			PrevHash: e.PrevHash,
			Hash:     e.Hash,
		}
	}
	respondJSON(c, http.StatusOK, AuditTrailResponse{
		InvoiceID:   trail.InvoiceID,
		Verified:    trail.Verified,
		VerifyError: trail.VerifyError,
		Events:      events,
	})
}

func toInvoiceResponse(invoice *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         invoice.ID,
		CustomerID: invoice.CustomerID,
		Amount:     invoice.Amount.Value.StringFixed(2),
		Currency:   string(invoice.Amount.Currency),
		Status:     string(invoice.Status),
	}
}

// invoiceID parses the :id path parameter, writing a 400 when it is not a number.
func invoiceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invoice id must be a number"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, defaultValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}
