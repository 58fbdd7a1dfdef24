package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// PatternsHandler handles pattern query HTTP requests.
type PatternsHandler struct {
	Base
	patterns *service.PatternService
}

// NewPatternsHandler creates a new patterns handler.
func NewPatternsHandler(patterns *service.PatternService) *PatternsHandler {
	return &PatternsHandler{patterns: patterns}
}

// List handles GET /api/patterns.
func (h *PatternsHandler) List(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.patterns.GetAllPatterns(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if patterns == nil {
		patterns = []*storage.Pattern{}
	}
	h.WriteJSON(w, http.StatusOK, patterns)
}

// ListByMerchant handles GET /api/patterns/merchant/{merchantId}.
func (h *PatternsHandler) ListByMerchant(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantId")
	if merchantID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("merchant ID is required"))
		return
	}

	patterns, err := h.patterns.GetPatternsByMerchant(r.Context(), merchantID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if patterns == nil {
		patterns = []*storage.Pattern{}
	}
	h.WriteJSON(w, http.StatusOK, patterns)
}
