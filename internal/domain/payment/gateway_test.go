package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	last *OrderRequest
	err  error
}

func (m *mockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	m.last = &req
	if m.err != nil {
		return nil, m.err
	}
	return &Order{ID: "order_test", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1300", want: 130000},
		{in: "1300.5", want: 130050},
		{in: "0.01", want: 1},
		{in: "0.10", want: 10},
		{in: "0.001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
		{in: "1e1000000000", wantErr: true},
		{in: "-1e1000000000", wantErr: true},
		{in: "1e-1000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.in))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				assert.Less(t, len(err.Error()), 64)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInRange(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want bool
	}{
		{in: "0", want: true},
		{in: "0.01", want: true},
		{in: "-999999999999999", want: true},
		{in: "999999999999999.99999999", want: true},
		{in: "1000000000000000", want: false},
		{in: "0.000000001", want: false},
		{in: "1e1000000000", want: false},
		{in: "1e-1000000000", want: false},
	} {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, InRange(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestInitiate(t *testing.T) {
	gw := &mockGateway{}
	in := NewInitiator(gw, "INR", "puja_")
	in.now = func() time.Time { return time.UnixMilli(1700000000123) }

	o, err := in.Initiate(context.Background(), decimal.RequireFromString("1300.00"))
	require.NoError(t, err)

	assert.Equal(t, "order_test", o.ID)
	require.NotNil(t, gw.last)
	assert.Equal(t, int64(130000), gw.last.Amount)
	assert.Equal(t, "INR", gw.last.Currency)
	assert.Equal(t, "puja_1700000000123", gw.last.Receipt)
}

func TestInitiate_InvalidAmount(t *testing.T) {
	gw := &mockGateway{}
	in := NewInitiator(gw, "INR", "puja_")

	_, err := in.Initiate(context.Background(), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Nil(t, gw.last, "gateway must not be called")
}

func TestInitiate_GatewayError(t *testing.T) {
	gw := &mockGateway{err: errors.New("connection reset")}
	in := NewInitiator(gw, "INR", "puja_")

	_, err := in.Initiate(context.Background(), decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create gateway order")
}
