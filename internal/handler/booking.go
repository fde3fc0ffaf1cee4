package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/puja-checkout/internal/domain/booking"
	"github.com/xenking/puja-checkout/internal/domain/order"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

type bookingReq struct {
	PaymentID   string          `json:"paymentId"`
	OrderID     string          `json:"orderId"`
	Signature   string          `json:"signature"`
	VariantID   string          `json:"variantId"`
	AddOns      []addOnReq      `json:"addOns"`
	Dakshina    json.RawMessage `json:"dakshina"`
	Prasad      bool            `json:"prasad"`
	Customer    customerReq     `json:"customer"`
	TotalAmount json.RawMessage `json:"totalAmount"`
}

type addOnReq struct {
	Title string          `json:"title"`
	Price json.RawMessage `json:"price"`
}

type customerReq struct {
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Phone  string            `json:"phone"`
	Gotra  string            `json:"gotra"`
	Wish   string            `json:"wish"`
	Fields map[string]string `json:"fields"`
}

// badRequestError is a malformed request that never reached the protocol.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// toDomain converts the request body into a booking request. Unparseable
// line amounts are reported as invalid line items.
func (b *bookingReq) toDomain() (booking.Request, error) {
	req := booking.Request{
		Payment: payment.Assertion{
			OrderID:   b.OrderID,
			PaymentID: b.PaymentID,
			Signature: b.Signature,
		},
		ItemRef: b.VariantID,
		Prasad:  b.Prasad,
		Customer: booking.Customer{
			Name:  b.Customer.Name,
			Email: b.Customer.Email,
			Phone: b.Customer.Phone,
			Gotra: b.Customer.Gotra,
			Wish:  b.Customer.Wish,
			Extra: b.Customer.Fields,
		},
		Dakshina: decimal.Zero,
	}

	for i, a := range b.AddOns {
		price, err := booking.ParseAmount(string(a.Price))
		if err != nil {
			line := a.Title
			if line == "" {
				line = "add-on #" + strconv.Itoa(i+1)
			}
			return req, &booking.InvalidLineItemError{Line: line, Reason: amountReason(err)}
		}
		req.AddOns = append(req.AddOns, booking.AddOn{Title: a.Title, Price: price})
	}

	if len(b.Dakshina) > 0 && string(b.Dakshina) != "null" {
		d, err := booking.ParseAmount(string(b.Dakshina))
		if err != nil {
			return req, &booking.InvalidLineItemError{Line: "dakshina", Reason: amountReason(err)}
		}
		req.Dakshina = d
	}

	total, err := booking.ParseAmount(string(b.TotalAmount))
	if err != nil {
		return req, &badRequestError{msg: "totalAmount: " + amountReason(err)}
	}
	req.FormTotal = total

	return req, nil
}

func amountReason(err error) string {
	if errors.Is(err, booking.ErrOutOfRange) {
		return "amount out of range"
	}
	return "amount is not a finite number"
}

// CreateDraftOrder runs the booking fulfillment protocol and returns the
// finalized order.
func (h *Handler) CreateDraftOrder(w http.ResponseWriter, r *http.Request) {
	var body bookingReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := body.toDomain()
	if err != nil {
		var brErr *badRequestError
		if errors.As(err, &brErr) {
			writeError(w, http.StatusBadRequest, brErr.msg)
			return
		}
		writeFailure(w, err)
		return
	}

	res, err := h.bookings.Fulfill(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	zctx.From(r.Context()).Info("Booking order created", zap.String("order_name", res.Order.Name))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("order")
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("id")
				e.Str(res.Order.ID)
				e.FieldStart("name")
				e.Str(res.Order.Name)
			})
			e.FieldStart("total")
			e.Str(booking.FormatAmount(res.Total))
		})
	})
}

// statusOf maps failure kinds to HTTP status codes.
func statusOf(kind booking.Kind) int {
	switch kind {
	case booking.KindPaymentVerificationFailed:
		return http.StatusUnauthorized
	case booking.KindInvalidCatalogReference,
		booking.KindInvalidLineItem,
		booking.KindAmountMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// writeFailure writes {"success":false,"error":{"kind","message",...}} with
// the details relevant to the failure kind.
func writeFailure(w http.ResponseWriter, err error) {
	kind := booking.KindOf(err)

	writeJSON(w, statusOf(kind), func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(false)
			e.FieldStart("error")
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("kind")
				e.Str(string(kind))
				e.FieldStart("message")
				e.Str(err.Error())
				encodeDetails(e, err)
			})
		})
	})
}

func encodeDetails(e *jx.Encoder, err error) {
	var (
		amErr  *booking.AmountMismatchError
		orphan *order.DraftOrphanedError
		dcErr  *order.DraftCreationError
	)
	switch {
	case errors.As(err, &amErr):
		e.FieldStart("calculated")
		e.Str(booking.FormatAmount(amErr.Calculated))
		e.FieldStart("submitted")
		e.Str(booking.FormatAmount(amErr.Submitted))
	case errors.As(err, &orphan):
		e.FieldStart("draftId")
		e.Str(orphan.Draft.ID)
		if orphan.Draft.Name != "" {
			e.FieldStart("draftName")
			e.Str(orphan.Draft.Name)
		}
	case errors.As(err, &dcErr) && len(dcErr.UserErrors) > 0:
		e.FieldStart("userErrors")
		e.Arr(func(e *jx.Encoder) {
			for _, fe := range dcErr.UserErrors {
				e.Obj(func(e *jx.Encoder) {
					e.FieldStart("field")
					e.Arr(func(e *jx.Encoder) {
						for _, f := range fe.Field {
							e.Str(f)
						}
					})
					e.FieldStart("message")
					e.Str(fe.Message)
				})
			}
		})
	}
}
