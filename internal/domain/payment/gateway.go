package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an order-initiation amount is not a
// positive value expressible in whole minor units.
var ErrInvalidAmount = errors.New("invalid amount")

// minorUnitExp is the number of fractional digits of the gateway currency.
const minorUnitExp = 2

// Bounds of amounts accepted anywhere in the checkout. With at most 15
// integer digits the paise value always fits in int64.
const (
	maxIntegerDigits  = 15
	maxFractionDigits = 8
)

// InRange reports whether amount has at most 15 integer digits and 8
// fractional digits. It inspects only the coefficient and exponent, so it is
// cheap for any parsed value, including ones with huge exponents.
func InRange(amount decimal.Decimal) bool {
	exp := int64(amount.Exponent())
	if exp < -maxFractionDigits {
		return false
	}
	coef := amount.Coefficient()
	digits := int64(len(coef.Text(10)))
	if coef.Sign() < 0 {
		digits--
	}
	return digits+exp <= maxIntegerDigits
}

// Order is a gateway-side payment intent that the checkout frontend pays against.
type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// OrderRequest is the input for creating a gateway-side payment intent.
type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// Gateway creates payment intents on the payments gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// ToMinorUnits converts a major-unit amount (rupees) into minor units (paise).
// Fractions of a minor unit are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !InRange(amount) {
		return 0, errors.Wrap(ErrInvalidAmount, "amount out of range")
	}
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Shift(minorUnitExp)
	if !minor.IsInteger() {
		return 0, errors.Wrap(ErrInvalidAmount, "sub-unit precision")
	}
	return minor.IntPart(), nil
}

// Initiator creates gateway payment intents for the checkout frontend.
type Initiator struct {
	gateway       Gateway
	currency      string
	receiptPrefix string
	now           func() time.Time
}

// NewInitiator creates an Initiator that creates orders in the given currency.
func NewInitiator(gateway Gateway, currency, receiptPrefix string) *Initiator {
	return &Initiator{
		gateway:       gateway,
		currency:      currency,
		receiptPrefix: receiptPrefix,
		now:           time.Now,
	}
}

// Initiate validates amount and creates a payment intent for it.
func (i *Initiator) Initiate(ctx context.Context, amount decimal.Decimal) (*Order, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	o, err := i.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   minor,
		Currency: i.currency,
		Receipt:  fmt.Sprintf("%s%d", i.receiptPrefix, i.now().UnixMilli()),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}
	return o, nil
}
