package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// MerchantsHandler handles merchant and rule HTTP requests.
type MerchantsHandler struct {
	Base
	merchants *service.MerchantService
}

// NewMerchantsHandler creates a new merchants handler.
func NewMerchantsHandler(merchants *service.MerchantService) *MerchantsHandler {
	return &MerchantsHandler{merchants: merchants}
}

// Normalize handles POST /api/merchants/normalize.
func (h *MerchantsHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req dto.NormalizeRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("description is required"))
		return
	}

	classification, err := h.merchants.Normalize(r.Context(), req.Description)
	if err != nil {
		h.WriteError(w, http.StatusBadGateway, dto.NewAPIError("oracle_error", "merchant classification failed"))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToNormalizeResponse(classification))
}

// Create handles POST /api/merchants.
func (h *MerchantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMerchantRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.NormalizedName) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("normalized_name is required"))
		return
	}

	m := &storage.Merchant{
		OriginalName:   req.OriginalName,
		NormalizedName: req.NormalizedName,
		Category:       req.Category,
		SubCategory:    req.SubCategory,
		Confidence:     req.Confidence,
		Flags:          req.Flags,
		IsActive:       true,
	}

	created, err := h.merchants.Create(r.Context(), m)
	if err != nil {
		if errors.Is(err, service.ErrMerchantExists) {
			h.WriteError(w, http.StatusConflict, dto.NewAPIError("conflict", "merchant already exists"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

// Get handles GET /api/merchants/{id}.
func (h *MerchantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("merchant ID is required"))
		return
	}

	m, err := h.merchants.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if m == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("merchant"))
		return
	}

	h.WriteJSON(w, http.StatusOK, m)
}

// Update handles PUT /api/merchants/{id}.
func (h *MerchantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("merchant ID is required"))
		return
	}

	var req dto.UpdateMerchantRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	m, err := h.merchants.Get(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if m == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("merchant"))
		return
	}

	if req.NormalizedName != "" {
		m.NormalizedName = req.NormalizedName
	}
	if req.Category != "" {
		m.Category = req.Category
	}
	if req.SubCategory != "" {
		m.SubCategory = req.SubCategory
	}
	if req.Flags != nil {
		m.Flags = req.Flags
	}

	if err := h.merchants.Update(r.Context(), m); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, m)
}

// Deactivate handles DELETE /api/merchants/{id}.
func (h *MerchantsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("merchant ID is required"))
		return
	}

	if err := h.merchants.Deactivate(r.Context(), id); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateRule handles POST /api/merchants/{id}/rules.
func (h *MerchantsHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "id")

	var req dto.CreateRuleRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Pattern) == "" || strings.TrimSpace(req.NormalizedName) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("pattern and normalized_name are required"))
		return
	}

	rule := &storage.MerchantRule{
		MerchantID:     merchantID,
		Pattern:        req.Pattern,
		NormalizedName: req.NormalizedName,
		Category:       req.Category,
		SubCategory:    req.SubCategory,
		Confidence:     req.Confidence,
		Priority:       req.Priority,
		IsActive:       true,
	}

	created, err := h.merchants.CreateRule(r.Context(), rule)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

// ListRules handles GET /api/rules.
func (h *MerchantsHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.merchants.ListRules(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if rules == nil {
		rules = []*storage.MerchantRule{}
	}
	h.WriteJSON(w, http.StatusOK, rules)
}
