package booking

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/puja-checkout/internal/domain/catalog"
	"github.com/xenking/puja-checkout/internal/domain/order"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

// Kind classifies fulfillment failures for callers.
type Kind string

const (
	KindPaymentVerificationFailed Kind = "PaymentVerificationFailed"
	KindInvalidCatalogReference   Kind = "InvalidCatalogReference"
	KindInvalidLineItem           Kind = "InvalidLineItem"
	KindAmountMismatch            Kind = "AmountMismatch"
	KindDraftCreationFailed       Kind = "DraftCreationFailed"
	KindDraftOrphaned             Kind = "DraftOrphaned"
	KindRemoteTransportError      Kind = "RemoteTransportError"
)

// Sentinel errors for the booking stages.
var (
	ErrInvalidLineItem  = errors.New("invalid line item")
	ErrAmountMismatch   = errors.New("amount mismatch")
	ErrRemoteTransport  = errors.New("remote transport error")
	ErrInvalidReference = errors.New("invalid catalog reference")
)

// InvalidCatalogReferenceError indicates the remote catalog does not know Ref.
type InvalidCatalogReferenceError struct {
	Ref string
	Err error
}

func (e *InvalidCatalogReferenceError) Error() string {
	return fmt.Sprintf("catalog item %q not found", e.Ref)
}

func (e *InvalidCatalogReferenceError) Unwrap() error { return e.Err }

func (e *InvalidCatalogReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

// InvalidLineItemError indicates a negative, non-numeric or out-of-range
// amount on a line or on the submitted total.
type InvalidLineItemError struct {
	// Line is the add-on title, "dakshina" for the surcharge or "total".
	Line   string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item %q: %s", e.Line, e.Reason)
}

func (e *InvalidLineItemError) Is(target error) bool { return target == ErrInvalidLineItem }

// AmountMismatchError indicates the client-submitted total differs from the
// recalculated one. Both values are reported; only Calculated is trusted.
type AmountMismatchError struct {
	Calculated decimal.Decimal
	Submitted  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: calculated %s, submitted %s",
		FormatAmount(e.Calculated), FormatAmount(e.Submitted))
}

func (e *AmountMismatchError) Is(target error) bool { return target == ErrAmountMismatch }

// RemoteTransportError indicates a remote call failed for reasons other than
// a classified rejection.
type RemoteTransportError struct {
	Stage string
	Err   error
}

func (e *RemoteTransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RemoteTransportError) Unwrap() error { return e.Err }

func (e *RemoteTransportError) Is(target error) bool { return target == ErrRemoteTransport }

// KindOf classifies err. Unclassified errors are reported as transport errors.
func KindOf(err error) Kind {
	switch {
	// Orphaned drafts need follow-up whatever the underlying cause was.
	case errors.Is(err, order.ErrDraftOrphaned):
		return KindDraftOrphaned
	case errors.Is(err, payment.ErrVerificationFailed):
		return KindPaymentVerificationFailed
	case errors.Is(err, ErrInvalidReference), errors.Is(err, catalog.ErrNotFound):
		return KindInvalidCatalogReference
	case errors.Is(err, ErrInvalidLineItem):
		return KindInvalidLineItem
	case errors.Is(err, ErrAmountMismatch):
		return KindAmountMismatch
	case errors.Is(err, order.ErrDraftCreationFailed):
		return KindDraftCreationFailed
	default:
		return KindRemoteTransportError
	}
}
