package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/shoporders"
	"github.com/go-chi/chi/v5"
)

type openSessionRequest struct {
	OperatorID string `json:"operator_id"`
	ShopID     string `json:"shop_id,omitempty"`
}

type sessionResponse struct {
	SessionID string            `json:"session_id,omitempty"`
	Status    shoporders.Status `json:"status"`
	Error     string            `json:"error,omitempty"`
}

type ordersResponse struct {
	Filter entity.OrderFilter `json:"filter"`
	Orders []entity.Order     `json:"orders"`
	Status shoporders.Status  `json:"status"`
}

type completeResponse struct {
	OrderID           string             `json:"order_id"`
	Status            entity.OrderStatus `json:"status"`
	NotificationError string             `json:"notification_error,omitempty"`
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, status, err := h.sessions.Open(r.Context(), req.OperatorID, req.ShopID)
	if errors.Is(err, entity.ErrSelectionRequired) {
		// The operator picks one of status.Shops and opens again with shop_id.
		writeJSON(w, http.StatusConflict, sessionResponse{Status: status, Error: err.Error()})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Status: status})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*shoporders.Synchronizer, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(chi.URLParam(r, "sessionID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessionOrders(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	filter, err := entity.ParseOrderFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponse{Filter: filter, Orders: s.Orders(filter), Status: s.Status()})
}

func (h *Handler) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	refreshed, err := s.Refresh(r.Context(), force)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": refreshed, "status": s.Status()})
}

func (h *Handler) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	h.restartSession(w, r, (*shoporders.Synchronizer).Resume)
}

func (h *Handler) handleSessionRetry(w http.ResponseWriter, r *http.Request) {
	h.restartSession(w, r, (*shoporders.Synchronizer).Retry)
}

func (h *Handler) restartSession(w http.ResponseWriter, r *http.Request, restart func(*shoporders.Synchronizer) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := restart(s); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse{SessionID: chi.URLParam(r, "sessionID"), Status: s.Status()})
}

func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.completeOrder(w, r, (*shoporders.Synchronizer).MarkCompleted)
}

func (h *Handler) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	h.completeOrder(w, r, (*shoporders.Synchronizer).Accept)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request, complete func(*shoporders.Synchronizer, context.Context, string) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	err := complete(s, r.Context(), orderID)
	if errors.Is(err, entity.ErrNotificationDispatch) {
		// The order is completed; only the email failed.
		writeJSON(w, http.StatusAccepted, completeResponse{OrderID: orderID, Status: entity.StatusCompleted, NotificationError: err.Error()})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{OrderID: orderID, Status: entity.StatusCompleted})
}

func (h *Handler) handlePreviewOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	preview, err := s.Preview(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
