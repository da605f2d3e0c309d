// internal/api/handler/balance.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"balance-ledger/internal/api/types"
	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util" // For custom errors
)

// DefaultTimeout is the per-request timeout applied by the router.
const DefaultTimeout = 15 * time.Second

// BalanceHandler handles HTTP requests related to balance operations.
type BalanceHandler struct {
	service service.BalanceService
	logger  *slog.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(svc service.BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		service: svc,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *BalanceHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *BalanceHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = "Invalid input"
	case util.IsError(err, util.ErrUnknownUser), util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "User not found"
	case util.IsError(err, util.ErrDuplicateUser):
		statusCode = http.StatusConflict
		message = "User already registered"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = "Insufficient funds"
	case util.IsError(err, util.ErrConcurrentUpdateConflict):
		statusCode = http.StatusConflict
		message = "Concurrent update conflict, retry the request"
	case util.IsError(err, util.ErrStorageUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Storage temporarily unavailable"
	case util.IsError(err, util.ErrCorruptBalanceData):
		h.logger.Error("Corrupt balance data", "error", err)
		message = "Corrupt balance data"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// userIDFromURL extracts and validates the {userID} route parameter.
func userIDFromURL(r *http.Request) (int64, error) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, util.ErrInvalidInput
	}
	return userID, nil
}

// Register handles the user registration request.
// PUT /register?user_id={id}
func (h *BalanceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	if err := h.service.RegisterUser(r.Context(), userID); err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered",
		"user_id": userID,
	})
}

// GetBalances handles the current balance request.
// GET /users/{userID}/balances
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromURL(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	balances, err := h.service.GetCurrentBalance(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balances": balances,
	})
}

// SetBalanceRequest represents the request body for setting a balance.
type SetBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SetBalance handles the set balance request.
// PUT /users/{userID}/balances/{currency}
func (h *BalanceHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromURL(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	currency := chi.URLParam(r, "currency")
	if currency == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	var req SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	balances, err := h.service.SetBalance(r.Context(), userID, currency, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balances": balances,
	})
}

// AdjustBalanceRequest represents the request body for adjusting a balance.
type AdjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// AdjustBalance handles the adjust balance request.
// POST /users/{userID}/balances/{currency}/adjust
func (h *BalanceHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromURL(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	currency := chi.URLParam(r, "currency")
	if currency == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	balances, err := h.service.AdjustBalance(r.Context(), userID, currency, req.Delta)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balances": balances,
	})
}

// Snapshot handles the on-demand snapshot request.
// POST /users/{userID}/snapshot
func (h *BalanceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromURL(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	record, err := h.service.RecordSnapshot(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, record)
}

// GetHistory handles the balance history request.
// GET /users/{userID}/history?since=&until=&limit=&offset=
func (h *BalanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromURL(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	records, totalCount, err := h.service.GetHistory(r.Context(), userID, filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.PastBalanceRecord]{
		Data:       records,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		TotalCount: totalCount,
	})
}

// historyFilterFromQuery parses the optional time window and pagination
// parameters. Timestamps are RFC 3339.
func historyFilterFromQuery(r *http.Request) (repository.HistoryFilter, error) {
	var filter repository.HistoryFilter

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, util.ErrInvalidInput
		}
		filter.Since = &since
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, util.ErrInvalidInput
		}
		filter.Until = &until
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, util.ErrInvalidInput
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, util.ErrInvalidInput
		}
		filter.Offset = offset
	}

	return filter, nil
}
