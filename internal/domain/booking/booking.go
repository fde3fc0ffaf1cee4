package booking

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/puja-checkout/internal/domain/payment"
)

// Request is an inbound booking. It is immutable for the duration of one
// fulfillment and never persisted.
type Request struct {
	Payment payment.Assertion
	// ItemRef identifies the catalog item (puja) being booked.
	ItemRef string
	AddOns  []AddOn
	// Dakshina is a free-form surcharge offered by the customer.
	Dakshina decimal.Decimal
	// Prasad enables the fixed-price prasad add-on.
	Prasad    bool
	Customer  Customer
	FormTotal decimal.Decimal
}

// AddOn is an optional line item with a client-declared price.
type AddOn struct {
	Title string
	Price decimal.Decimal
}

// Customer is carried unchanged into the remote order's metadata.
type Customer struct {
	Name  string
	Email string
	Phone string
	Gotra string
	Wish  string
	// Extra holds any other free-text attributes collected by the form.
	Extra map[string]string
}
