package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/puja-checkout/internal/domain/booking"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

type createRazorpayOrderReq struct {
	Amount json.RawMessage `json:"amount"`
}

// CreateRazorpayOrder creates a gateway payment intent for the checkout
// frontend and returns its id.
func (h *Handler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	var req createRazorpayOrderReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := booking.ParseAmount(string(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	o, err := h.initiator.Initiate(r.Context(), amount)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		lg.Error("Razorpay order creation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to create Razorpay order")
		return
	}

	lg.Info("Razorpay order created",
		zap.String("razorpay_order_id", o.ID),
		zap.Int64("amount", o.Amount),
	)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("id")
			e.Str(o.ID)
			e.FieldStart("amount")
			e.Int64(o.Amount)
			e.FieldStart("currency")
			e.Str(o.Currency)
		})
	})
}
