package booking

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/puja-checkout/internal/domain/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecalculate(t *testing.T) {
	quote := catalog.Quote{Ref: "v1", UnitPrice: dec("1100.00"), Title: "Rudrabhishek"}
	prasad := dec("101.00")

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "item only",
			req:  Request{},
			want: "1100.00",
		},
		{
			name: "add-on and dakshina",
			req: Request{
				AddOns:   []AddOn{{Title: "Flowers", Price: dec("150.00")}},
				Dakshina: dec("50.00"),
			},
			want: "1300.00",
		},
		{
			name: "prasad flag",
			req: Request{
				AddOns: []AddOn{{Title: "Flowers", Price: dec("150.00")}},
				Prasad: true,
			},
			want: "1351.00",
		},
		{
			name: "cents do not drift",
			req: Request{
				AddOns: []AddOn{
					{Title: "a", Price: dec("0.10")},
					{Title: "b", Price: dec("0.20")},
					{Title: "c", Price: dec("0.30")},
				},
				Dakshina: dec("0.01"),
			},
			want: "1100.61",
		},
		{
			name: "zero priced add-on",
			req:  Request{AddOns: []AddOn{{Title: "Blessing", Price: decimal.Zero}}},
			want: "1100.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Recalculate(quote, tt.req, prasad)
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(p.Total), "want %s, got %s", tt.want, p.Total)
		})
	}
}

func TestRecalculate_Deterministic(t *testing.T) {
	quote := catalog.Quote{UnitPrice: dec("999.99")}
	req := Request{
		AddOns:   []AddOn{{Price: dec("0.1")}, {Price: dec("0.2")}},
		Dakshina: dec("33.33"),
		Prasad:   true,
	}

	first, err := Recalculate(quote, req, dec("101"))
	require.NoError(t, err)
	for range 100 {
		p, err := Recalculate(quote, req, dec("101"))
		require.NoError(t, err)
		require.Equal(t, first.Total.String(), p.Total.String())
	}
	assert.Equal(t, "1134.62", first.Total.StringFixed(2))
}

func TestRecalculate_NegativeAddOn(t *testing.T) {
	_, err := Recalculate(catalog.Quote{UnitPrice: dec("10")}, Request{
		AddOns: []AddOn{{Title: "Flowers", Price: dec("150")}, {Price: dec("-1")}},
	}, decimal.Zero)

	require.ErrorIs(t, err, ErrInvalidLineItem)
	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "add-on #2", liErr.Line)
}

func TestRecalculate_NegativeDakshina(t *testing.T) {
	_, err := Recalculate(catalog.Quote{UnitPrice: dec("10")}, Request{Dakshina: dec("-0.01")}, decimal.Zero)

	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "dakshina", liErr.Line)
}

func TestRecalculate_SubPaisaAddOn(t *testing.T) {
	_, err := Recalculate(catalog.Quote{UnitPrice: dec("10")}, Request{
		AddOns: []AddOn{{Title: "Lamp", Price: dec("10.005")}},
	}, decimal.Zero)

	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "Lamp", liErr.Line)
	assert.Equal(t, "fraction of a minor unit", liErr.Reason)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		calculated string
		submitted  string
		ok         bool
	}{
		{"1300.00", "1300.00", true},
		{"1300.00", "1300", true},
		{"1300.00", "1250.00", false},
		{"1300.00", "1300.001", false},
		{"1300.00", "1299.999", false},
		{"1300.00", "1300.01", false},
		{"0", "0.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.calculated+" vs "+tt.submitted, func(t *testing.T) {
			err := Reconcile(dec(tt.calculated), dec(tt.submitted))
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrAmountMismatch)
		})
	}
}

func TestReconcile_ReportsBothValues(t *testing.T) {
	err := Reconcile(dec("1300"), dec("1250"))

	var amErr *AmountMismatchError
	require.True(t, errors.As(err, &amErr))
	assert.Equal(t, "1300.00", FormatAmount(amErr.Calculated))
	assert.Equal(t, "1250.00", FormatAmount(amErr.Submitted))
	assert.Equal(t, "amount mismatch: calculated 1300.00, submitted 1250.00", err.Error())
}

func TestParseAmount(t *testing.T) {
	for _, tt := range []struct {
		raw     string
		want    string
		wantErr error
	}{
		{raw: "150", want: "150"},
		{raw: "150.50", want: "150.5"},
		{raw: `"150.50"`, want: "150.5"},
		{raw: "1e2", want: "100"},
		{raw: "999999999999999.99999999", want: "999999999999999.99999999"},
		{raw: "NaN", wantErr: ErrNotFinite},
		{raw: `"Infinity"`, wantErr: ErrNotFinite},
		{raw: "", wantErr: ErrNotFinite},
		{raw: "null", wantErr: ErrNotFinite},
		{raw: "1e1000000000", wantErr: ErrOutOfRange},
		{raw: `"-1e1000000000"`, wantErr: ErrOutOfRange},
		{raw: "1e-1000000000", wantErr: ErrOutOfRange},
		{raw: "0e1000000000", wantErr: ErrOutOfRange},
		{raw: "1000000000000000", wantErr: ErrOutOfRange},
		{raw: "0.000000001", wantErr: ErrOutOfRange},
	} {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Less(t, len(err.Error()), 64)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestRecalculate_OutOfRangeAmounts(t *testing.T) {
	huge := decimal.New(1, 1_000_000_000)

	_, err := Recalculate(catalog.Quote{UnitPrice: dec("1100")}, Request{Dakshina: huge}, dec("101"))
	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "dakshina", liErr.Line)
	assert.Equal(t, "amount out of range", liErr.Reason)

	_, err = Recalculate(catalog.Quote{UnitPrice: dec("1100")}, Request{FormTotal: huge}, dec("101"))
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "total", liErr.Line)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1300.00", FormatAmount(dec("1300")))
	assert.Equal(t, "0.50", FormatAmount(dec("0.5000")))
	assert.Equal(t, "1299.999", FormatAmount(dec("1299.999")))
}
