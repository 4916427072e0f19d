/*
handlers.go - HTTP API handlers for the budgeting engine

PURPOSE:
  Exposes the per-diem budgeting engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    POST   /api/periods                 Open a new pay period
    GET    /api/periods/active          Current active period
    GET    /api/periods/{id}/summary    Full period report
    GET    /api/periods/{id}/ledger     Per-diem day history

  Transactions:
    POST   /api/transactions            Post a classified transaction
    GET    /api/transactions            Recent transactions (?limit=N)

  Status:
    GET    /api/status                  Today's per-diem standing

  Categories:
    GET    /api/categories              List categories

  Settings:
    GET    /api/settings                All settings
    PUT    /api/settings/{key}          Set one value
    DELETE /api/settings/{key}          Remove one value

SINGLE-USER MODE:
  The server runs for one user, bootstrapped at startup. Handlers
  resolve that user from the store per request rather than trusting
  client-supplied identity.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown fixed-cost category
  - 404: Resource not found
  - 500: Storage and other internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - budget/engine.go: The accounting logic behind these handlers
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spendsend/budget-engine/budget"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    budget.TxStore
	Engine   *budget.Engine
	Reporter *budget.Reporter
}

// NewHandler creates a new handler with the given store.
func NewHandler(store budget.TxStore) *Handler {
	return &Handler{
		Store:    store,
		Engine:   budget.NewEngine(store),
		Reporter: budget.NewReporter(store),
	}
}

// currentUser resolves the bootstrapped user, writing the error response
// itself on failure.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*budget.User, bool) {
	user, err := h.Store.CurrentUser(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "No user configured", nil)
		return nil, false
	}
	return user, true
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// CreatePeriod opens a new pay period.
// POST /api/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := budget.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := budget.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	income, err := budget.ParseMoney(req.Income)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid income amount", err)
		return
	}

	allocs := make([]budget.FixedAllocationInput, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		amount, err := budget.ParseMoney(a.Allocated)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid allocation amount for "+a.Category, err)
			return
		}
		allocs = append(allocs, budget.FixedAllocationInput{
			Category:  a.Category,
			Allocated: amount,
		})
	}

	period, err := h.Engine.CreatePayPeriod(r.Context(), budget.CreatePayPeriodInput{
		UserID:      user.ID,
		StartDate:   start,
		EndDate:     end,
		Income:      income,
		Allocations: allocs,
	})
	if err != nil {
		writeDomainError(w, "Failed to create pay period", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPeriodDTO(*period))
}

// GetActivePeriod returns the user's active pay period.
// GET /api/periods/active
func (h *Handler) GetActivePeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	period, err := h.Engine.ActivePayPeriod(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "Failed to get active period", err)
		return
	}

	writeJSON(w, http.StatusOK, toPeriodDTO(*period))
}

// GetSummary returns the full period report.
// GET /api/periods/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	periodID := budget.PayPeriodID(chi.URLParam(r, "id"))

	summary, err := h.Reporter.Summary(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, "Failed to build summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetLedger returns the period's per-diem day history.
// GET /api/periods/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	periodID := budget.PayPeriodID(chi.URLParam(r, "id"))

	entries, err := h.Store.Entries(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, "Failed to get ledger entries", err)
		return
	}

	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// PostTransaction records a classified transaction against the active
// period, routing it to the fixed-cost tracker or the per-diem ledger.
// POST /api/transactions
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req PostTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := budget.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	var date budget.Date
	if req.Date != "" {
		if date, err = budget.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	period, err := h.Engine.ActivePayPeriod(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "No active pay period", err)
		return
	}

	tx, err := h.Engine.HandleClassifiedTransaction(r.Context(), user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:      amount,
		Category:    req.Category,
		IsFixedCost: req.IsFixedCost,
		Description: req.Description,
		Merchant:    req.Merchant,
		Date:        date,
	})
	if err != nil {
		writeDomainError(w, "Failed to post transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// ListTransactions returns the user's most recent transactions.
// GET /api/transactions?limit=N
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	txs, err := h.Store.RecentTransactions(r.Context(), user.ID, limit)
	if err != nil {
		writeDomainError(w, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STATUS
// =============================================================================

// GetStatus reports where the user stands today. With no active period
// this returns a zeroed status, not an error.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	status, err := h.Engine.TodaysStatus(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "Failed to get status", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusDTO{
		PerDiemRate:       status.PerDiemRate.String(),
		RemainingToday:    status.RemainingToday.String(),
		SpentToday:        status.SpentToday.String(),
		DaysUntilPayday:   status.DaysUntilPayday,
		ProjectedTomorrow: status.ProjectedTomorrow.String(),
	})
}

// =============================================================================
// CATEGORIES
// =============================================================================

// ListCategories returns the user's categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	cats, err := h.Store.Categories(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, CategoryDTO{
			ID:          string(c.ID),
			Name:        c.Name,
			IsFixedCost: c.IsFixedCost,
			IsDefault:   c.IsDefault,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SETTINGS
// =============================================================================

// ListSettings returns all settings for the user.
// GET /api/settings
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	settings, err := h.Store.Settings(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, "Failed to list settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PutSetting sets one preference value.
// PUT /api/settings/{key}
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	key := chi.URLParam(r, "key")
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetSetting(r.Context(), user.ID, key, req.Value); err != nil {
		writeDomainError(w, "Failed to save setting", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: req.Value})
}

// DeleteSetting removes one preference value.
// DELETE /api/settings/{key}
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.Store.DeleteSetting(r.Context(), user.ID, key); err != nil {
		writeDomainError(w, "Failed to delete setting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	// Client-error check runs first: an unknown fixed-cost category is
	// both "not found" and a bad request, and the caller can fix it.
	case budget.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case budget.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
