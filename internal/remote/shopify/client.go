// Package shopify implements the catalog and order ports on top of the
// Shopify GraphQL Admin API.
package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-01"

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Config holds the Admin API connection settings.
type Config struct {
	// StoreURL is the shop host (e.g. "digitalpuja.myshopify.com"), with or
	// without a scheme.
	StoreURL   string
	AdminToken string
	APIVersion string
	HTTPClient *http.Client
}

// Client is a minimal GraphQL Admin API client.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New creates a Client for the configured store.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, errors.New("store URL is required")
	}
	if cfg.AdminToken == "" {
		return nil, errors.New("admin token is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	base := strings.TrimRight(cfg.StoreURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	return &Client{
		endpoint: fmt.Sprintf("%s/admin/api/%s/graphql.json", base, cfg.APIVersion),
		token:    cfg.AdminToken,
		http:     cfg.HTTPClient,
	}, nil
}

// StatusError is returned when the Admin API answers with a non-200 status.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Op, e.StatusCode)
}

// GraphQLError holds top-level GraphQL errors of a response.
type GraphQLError struct {
	Op       string
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("%s: graphql: %s", e.Op, strings.Join(e.Messages, "; "))
}

// do executes a GraphQL operation. vars writes the fields of the variables
// object; data decodes the value of the "data" key when it is not null.
func (c *Client) do(
	ctx context.Context,
	op, query string,
	vars func(e *jx.Encoder),
	data func(d *jx.Decoder) error,
) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("query")
	e.Str(query)
	if vars != nil {
		e.FieldStart("variables")
		e.ObjStart()
		vars(e)
		e.ObjEnd()
	}
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", op)
	}

	var messages []string
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return data(d)
		case "errors":
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "message" {
						return d.Skip()
					}
					msg, err := d.Str()
					messages = append(messages, msg)
					return err
				})
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}

	if len(messages) > 0 {
		return &GraphQLError{Op: op, Messages: messages}
	}
	return nil
}

// Ping checks that the store is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "shop", `query { shop { name } }`, nil, func(d *jx.Decoder) error {
		return d.Skip()
	})
}

// decodeString decodes a string that may be null.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
