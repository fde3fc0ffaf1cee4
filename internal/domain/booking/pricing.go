package booking

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/puja-checkout/internal/domain/catalog"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

// Pricing is the server-side recalculation of a booking total.
type Pricing struct {
	Quote    catalog.Quote
	AddOns   decimal.Decimal
	Dakshina decimal.Decimal
	Prasad   decimal.Decimal
	Total    decimal.Decimal
}

// Recalculate computes
//
//	total = unitPrice + sum(add-on prices) + dakshina + (prasadPrice if prasad)
//
// exactly, without rounding. Negative prices are rejected.
func Recalculate(q catalog.Quote, req Request, prasadPrice decimal.Decimal) (*Pricing, error) {
	if err := validateLineItems(req); err != nil {
		return nil, err
	}

	p := &Pricing{
		Quote:    q,
		AddOns:   decimal.Zero,
		Dakshina: req.Dakshina,
		Prasad:   decimal.Zero,
	}
	for _, a := range req.AddOns {
		p.AddOns = p.AddOns.Add(a.Price)
	}
	if req.Prasad {
		p.Prasad = prasadPrice
	}
	p.Total = q.UnitPrice.Add(p.AddOns).Add(p.Dakshina).Add(p.Prasad)
	return p, nil
}

// minorUnits is the number of fractional digits a line amount may carry.
const minorUnits = 2

func validateLineItems(req Request) error {
	for i, a := range req.AddOns {
		if reason := checkAmount(a.Price); reason != "" {
			return &InvalidLineItemError{Line: addOnTitle(a, i), Reason: reason}
		}
	}
	if reason := checkAmount(req.Dakshina); reason != "" {
		return &InvalidLineItemError{Line: "dakshina", Reason: reason}
	}
	if !payment.InRange(req.FormTotal) {
		return &InvalidLineItemError{Line: "total", Reason: "amount out of range"}
	}
	return nil
}

func checkAmount(d decimal.Decimal) string {
	switch {
	case !payment.InRange(d):
		return "amount out of range"
	case d.IsNegative():
		return "negative amount"
	case !d.Round(minorUnits).Equal(d):
		return "fraction of a minor unit"
	default:
		return ""
	}
}

// Reconcile accepts only when submitted equals calculated exactly. Values that
// would agree after rounding are still rejected.
func Reconcile(calculated, submitted decimal.Decimal) error {
	if !calculated.Equal(submitted) {
		return &AmountMismatchError{Calculated: calculated, Submitted: submitted}
	}
	return nil
}

// Amount parse errors.
var (
	ErrNotFinite  = errors.New("not a finite decimal")
	ErrOutOfRange = errors.New("amount out of range")
)

// ParseAmount parses a client-supplied amount. JSON numbers and numeric
// strings are accepted; NaN and infinities are not. Values outside
// payment.InRange are rejected before any arithmetic touches them.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if s == "" {
		return decimal.Zero, ErrNotFinite
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotFinite
	}
	if !payment.InRange(d) {
		return decimal.Zero, ErrOutOfRange
	}
	return d, nil
}

// FormatAmount renders d with two fractional digits unless that would hide
// precision.
func FormatAmount(d decimal.Decimal) string {
	if d.Round(2).Equal(d) {
		return d.StringFixed(2)
	}
	return d.String()
}

func addOnTitle(a AddOn, i int) string {
	if a.Title != "" {
		return a.Title
	}
	return "add-on #" + strconv.Itoa(i+1)
}
