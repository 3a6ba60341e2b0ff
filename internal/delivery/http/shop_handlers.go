package http

import (
	"net/http"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/location"
	"github.com/go-chi/chi/v5"
)

type pricingRequest struct {
	Entries []entity.PricingEntry `json:"entries"`
}

type pricingResponse struct {
	ShopID  string                `json:"shop_id"`
	Entries []entity.PricingEntry `json:"entries"`
}

func (h *Handler) handleListPricing(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	entries, err := h.pricing.List(r.Context(), shopID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse{ShopID: shopID, Entries: entries})
}

func (h *Handler) handleSavePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shopID := chi.URLParam(r, "shopID")
	entries, err := h.pricing.Save(r.Context(), shopID, req.Entries)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse{ShopID: shopID, Entries: entries})
}

func (h *Handler) handleDeletePricing(w http.ResponseWriter, r *http.Request) {
	if err := h.pricing.Remove(r.Context(), chi.URLParam(r, "shopID"), chi.URLParam(r, "entryID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req location.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sel, err := h.locations.UpdateShopLocation(r.Context(), chi.URLParam(r, "shopID"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}
