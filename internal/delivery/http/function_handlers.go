package http

import (
	"net/http"
)

type completedEmailRequest struct {
	OrderID string `json:"orderId"`
}

type completedEmailResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}

// handleSendCompletedEmail answers every failure with 500 and {"error": ...},
// which is what the notification dispatcher expects.
func (h *Handler) handleSendCompletedEmail(w http.ResponseWriter, r *http.Request) {
	if h.mailer == nil {
		writeError(w, http.StatusInternalServerError, "email delivery is not configured")
		return
	}

	var req completedEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid request body")
		return
	}

	recipient, err := h.mailer.SendOrderCompleted(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, completedEmailResponse{
		Success:   true,
		Message:   "Order completion email sent",
		Recipient: recipient,
	})
}
