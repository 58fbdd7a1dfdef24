package handlers

import (
	"errors"
	"net/http"

	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
	"github.com/spendlens/spendlens-backend/internal/ingest"
)

// AnalysisHandler runs pattern detection over a submitted batch.
type AnalysisHandler struct {
	Base
	merchants *service.MerchantService
	patterns  *service.PatternService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(merchants *service.MerchantService, patterns *service.PatternService) *AnalysisHandler {
	return &AnalysisHandler{merchants: merchants, patterns: patterns}
}

// DetectPatterns handles POST /api/analysis/patterns. Each description is
// resolved to a merchant (created on first sight), then detection runs per
// merchant group. Partial results are returned; the call fails only when no
// group could be processed.
func (h *AnalysisHandler) DetectPatterns(w http.ResponseWriter, r *http.Request) {
	var req dto.AnalyzeRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if len(req.Transactions) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("transactions are required"))
		return
	}

	batch := make([]pattern.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		date, ok := ingest.ParseDate(t.Date)
		if !ok || t.Description == "" {
			// Malformed rows are dropped; the rest of the batch continues.
			continue
		}
		batch = append(batch, pattern.Transaction{
			Description: t.Description,
			Amount:      t.Amount,
			Date:        date,
		})
	}

	// Detection persists against merchant ids, so unknown merchants get
	// created before grouping.
	for _, t := range batch {
		classification, err := h.merchants.Normalize(r.Context(), t.Description)
		if err != nil {
			continue
		}
		if _, err := h.merchants.FindOrCreateByClassification(r.Context(), t.Description, classification); err != nil {
			continue
		}
	}

	detected, err := h.patterns.DetectPatterns(r.Context(), batch)
	if err != nil {
		if errors.Is(err, service.ErrNoGroupsProcessed) {
			h.WriteError(w, http.StatusUnprocessableEntity, dto.NewAPIError("no_groups_processed", "no merchant groups could be processed"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if detected == nil {
		detected = []*storage.Pattern{}
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{"detected_patterns": detected})
}
