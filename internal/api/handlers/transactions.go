package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
	"github.com/spendlens/spendlens-backend/internal/ingest"
)

// TransactionsHandler handles transaction HTTP requests, including CSV
// uploads.
type TransactionsHandler struct {
	Base
	transactions *service.TransactionService
	patterns     *service.PatternService
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions *service.TransactionService, patterns *service.PatternService) *TransactionsHandler {
	return &TransactionsHandler{transactions: transactions, patterns: patterns}
}

// Create handles POST /api/transactions.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	in, apiErr := toInput(req)
	if apiErr != nil {
		h.WriteError(w, http.StatusBadRequest, *apiErr)
		return
	}

	t, err := h.transactions.Create(r.Context(), in)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(verr.Error()))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, t)
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.TransactionFilters{
		MerchantID: r.URL.Query().Get("merchant_id"),
		Category:   r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
		Limit:      ParseIntParam(r, "limit", 50),
		Offset:     ParseIntParam(r, "offset", 0),
		OrderBy:    r.URL.Query().Get("order_by"),
		OrderDesc:  ParseBoolParam(r, "order_desc", true),
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		if t, ok := ingest.ParseDate(raw); ok {
			filters.StartDate = &t
		}
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		if t, ok := ingest.ParseDate(raw); ok {
			filters.EndDate = &t
		}
	}

	list, err := h.transactions.List(r.Context(), filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, list)
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	t, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if t == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("transaction"))
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

// Upload handles POST /api/transactions/upload. The multipart file field is
// named "file"; rows that fail to parse are reported, not fatal.
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("file field is required"))
		return
	}
	defer file.Close()

	parsed, err := ingest.Parse(file)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	inputs := make([]service.TransactionInput, 0, len(parsed.Records))
	batch := make([]pattern.Transaction, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		inputs = append(inputs, service.TransactionInput{
			Description: rec.Description,
			Amount:      rec.Amount,
			Date:        rec.Date,
		})
		batch = append(batch, pattern.Transaction{
			Description: rec.Description,
			Amount:      rec.Amount,
			Date:        rec.Date,
		})
	}

	created, skipped, err := h.transactions.CreateBatch(r.Context(), inputs)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	detected, err := h.patterns.DetectPatterns(r.Context(), batch)
	if err != nil && !errors.Is(err, service.ErrNoGroupsProcessed) {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	resp := dto.UploadResponse{
		ProcessedCount: len(created),
		FailedCount:    len(parsed.Errors) + skipped,
		Errors:         make([]string, 0, len(parsed.Errors)),
		Transactions:   make([]dto.SavedResource, 0, len(created)),
		Patterns:       detected,
	}
	for _, rowErr := range parsed.Errors {
		resp.Errors = append(resp.Errors, rowErr.Error())
	}
	for _, t := range created {
		resp.Transactions = append(resp.Transactions, dto.SavedResource{ID: t.ID, Description: t.Description})
	}
	if resp.Patterns == nil {
		resp.Patterns = []*storage.Pattern{}
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func toInput(req dto.CreateTransactionRequest) (service.TransactionInput, *dto.APIError) {
	var date time.Time
	if req.Date != "" {
		parsed, ok := ingest.ParseDate(req.Date)
		if !ok {
			apiErr := dto.ValidationError("unrecognized date format")
			return service.TransactionInput{}, &apiErr
		}
		date = parsed
	}
	return service.TransactionInput{
		Description: req.Description,
		Amount:      req.Amount,
		Date:        date,
	}, nil
}
