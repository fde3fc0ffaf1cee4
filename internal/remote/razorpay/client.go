// Package razorpay implements the payment gateway port against the Razorpay
// Orders API.
package razorpay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/puja-checkout/internal/domain/payment"
)

var _ payment.Gateway = (*Client)(nil)

// DefaultBaseURL is the public Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

// Config holds the API credentials.
type Config struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	HTTPClient *http.Client
}

// Client creates orders on the Razorpay Orders API.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("key id and key secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      cfg.HTTPClient,
	}, nil
}

// APIError is an error response from the Orders API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// CreateOrder creates a payment order for the amount in minor units.
func (c *Client) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(req.Amount)
	e.FieldStart("currency")
	e.Str(req.Currency)
	e.FieldStart("receipt")
	e.Str(req.Receipt)
	e.ObjEnd()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	o := &payment.Order{}
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.Amount, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "receipt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Receipt, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o.ID == "" {
		return nil, errors.New("no order id in response")
	}
	return o, nil
}

// decodeAPIError extracts {"error":{"code","description"}} when present.
func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	_ = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				apiErr.Code, err = d.Str()
			case "description":
				apiErr.Description, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
	return apiErr
}
