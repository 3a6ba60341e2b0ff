package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type checkoutResponse struct {
	OrderID    string               `json:"order_id"`
	ShopID     string               `json:"shop_id"`
	State      entity.CheckoutState `json:"state"`
	Total      decimal.Decimal      `json:"total"`
	PaymentURI string               `json:"payment_uri,omitempty"`
}

func newCheckoutResponse(c *entity.Checkout) checkoutResponse {
	resp := checkoutResponse{OrderID: c.OrderID, ShopID: c.ShopID, State: c.State, Total: c.Total}
	if uri, ok := c.PaymentURI(); ok {
		resp.PaymentURI = uri
	}
	return resp
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	spec, err := specFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	quote, err := h.checkout.Quote(r.Context(), chi.URLParam(r, "shopID"), spec)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func specFromQuery(r *http.Request) (entity.PrintSpec, error) {
	q := r.URL.Query()
	spec := entity.PrintSpec{
		PaperSize: entity.PaperSize(q.Get("paper_size")),
		ColorMode: entity.ColorMode(q.Get("color_mode")),
		Copies:    1,
		PageCount: 1,
	}
	var err error
	if v := q.Get("copies"); v != "" {
		if spec.Copies, err = strconv.Atoi(v); err != nil {
			return spec, errInvalidParam("copies")
		}
	}
	if v := q.Get("page_count"); v != "" {
		if spec.PageCount, err = strconv.Atoi(v); err != nil {
			return spec, errInvalidParam("page_count")
		}
	}
	if v := q.Get("double_sided"); v != "" {
		if spec.DoubleSided, err = strconv.ParseBool(v); err != nil {
			return spec, errInvalidParam("double_sided")
		}
	}
	if v := q.Get("stapling"); v != "" {
		if spec.Stapling, err = strconv.ParseBool(v); err != nil {
			return spec, errInvalidParam("stapling")
		}
	}
	return spec, nil
}

func errInvalidParam(name string) error {
	return fmt.Errorf("%w: invalid %s", entity.ErrValidation, name)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd entity.PlaceOrder
	if err := decodeJSON(w, r, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	checkout, err := h.checkout.CreateOrder(r.Context(), &cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCheckoutResponse(checkout))
}

func (h *Handler) handleManualPayment(w http.ResponseWriter, r *http.Request) {
	checkout, err := h.checkout.ConfirmPayment(r.Context(), chi.URLParam(r, "orderID"), entity.PaymentSourceManual, true)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCheckoutResponse(checkout))
}

type widgetResultRequest struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) handleWidgetPayment(w http.ResponseWriter, r *http.Request) {
	var req widgetResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	checkout, err := h.checkout.ConfirmPayment(r.Context(), chi.URLParam(r, "orderID"), entity.PaymentSourceWidget, req.Success)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCheckoutResponse(checkout))
}

func (h *Handler) handlePaymentQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if r.URL.Query().Get("format") != "png" {
		uri, err := h.checkout.PaymentURI(r.Context(), orderID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "uri": uri})
		return
	}

	size := service.QRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			writeDomainError(w, r, errInvalidParam("size"))
			return
		}
		size = n
	}
	png, err := h.checkout.PaymentQR(r.Context(), orderID, size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
