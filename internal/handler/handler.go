package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/puja-checkout/internal/domain/booking"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

// Route paths served by the Handler.
const (
	PathCreateRazorpayOrder = "/api/create-razorpay-order"
	PathCreateDraftOrder    = "/api/create-draft-order"
)

// maxBodySize caps request bodies.
const maxBodySize = 64 << 10

// Fulfiller runs the booking fulfillment protocol.
type Fulfiller interface {
	Fulfill(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Initiator creates gateway payment intents.
type Initiator interface {
	Initiate(ctx context.Context, amount decimal.Decimal) (*payment.Order, error)
}

// Handler adapts HTTP requests to the booking and payment services. Every
// route accepts POST only.
type Handler struct {
	bookings  Fulfiller
	initiator Initiator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(bookings Fulfiller, initiator Initiator) *Handler {
	return &Handler{
		bookings:  bookings,
		initiator: initiator,
	}
}

// Routes maps route paths to operation names for instrumentation.
func Routes() map[string]string {
	return map[string]string{
		PathCreateRazorpayOrder: "CreateRazorpayOrder",
		PathCreateDraftOrder:    "CreateDraftOrder",
	}
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(PathCreateRazorpayOrder, postOnly(h.CreateRazorpayOrder))
	mux.Handle(PathCreateDraftOrder, postOnly(h.CreateDraftOrder))
}

// postOnly rejects every method but POST. CORS preflight requests are
// answered by the CORS middleware before reaching here.
func postOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next(w, r)
	})
}

// writeJSON encodes the response body with fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fn(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already written; a failed write means the client left.
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("error")
			e.Str(msg)
		})
	})
}
