package shopify

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/puja-checkout/internal/domain/catalog"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

var _ catalog.Catalog = (*Client)(nil)

const variantGIDPrefix = "gid://shopify/ProductVariant/"

const productVariantQuery = `query productVariant($id: ID!) {
  productVariant(id: $id) {
    id
    title
    price
    product {
      title
    }
  }
}`

// VariantGID normalizes a catalog reference into a ProductVariant global id.
// Bare numeric ids are expanded; anything else that is not a variant gid is
// rejected.
func VariantGID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, variantGIDPrefix) && len(ref) > len(variantGIDPrefix) {
		return ref, true
	}
	if ref == "" {
		return "", false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return variantGIDPrefix + ref, true
}

// Lookup fetches the current price and title of a product variant.
// Unknown or malformed references yield catalog.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, ref string) (*catalog.Quote, error) {
	gid, ok := VariantGID(ref)
	if !ok {
		return nil, catalog.ErrNotFound
	}

	var (
		found        bool
		id           string
		variantTitle string
		productTitle string
		price        decimal.Decimal
		hasPrice     bool
	)
	err := c.do(ctx, "productVariant", productVariantQuery,
		func(e *jx.Encoder) {
			e.FieldStart("id")
			e.Str(gid)
		},
		func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "productVariant" {
					return d.Skip()
				}
				if d.Next() == jx.Null {
					return d.Null()
				}
				found = true
				return d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						id, err = d.Str()
					case "title":
						variantTitle, err = decodeString(d)
					case "price":
						price, err = decodeMoney(d)
						hasPrice = err == nil
					case "product":
						if d.Next() == jx.Null {
							return d.Null()
						}
						err = d.Obj(func(d *jx.Decoder, key string) error {
							if key != "title" {
								return d.Skip()
							}
							var err error
							productTitle, err = decodeString(d)
							return err
						})
					default:
						err = d.Skip()
					}
					return err
				})
			})
		},
	)
	if err != nil {
		var gqlErr *GraphQLError
		if errors.As(err, &gqlErr) && gqlErr.invalidID() {
			return nil, errors.Wrap(catalog.ErrNotFound, gqlErr.Error())
		}
		return nil, err
	}
	if !found {
		return nil, catalog.ErrNotFound
	}
	if !hasPrice {
		return nil, errors.Errorf("productVariant %s: missing price", gid)
	}
	if !payment.InRange(price) || price.IsNegative() {
		return nil, errors.Errorf("productVariant %s: price out of range", gid)
	}
	if id == "" {
		id = gid
	}

	return &catalog.Quote{
		Ref:       id,
		UnitPrice: price,
		Title:     displayTitle(productTitle, variantTitle),
	}, nil
}

func (e *GraphQLError) invalidID() bool {
	for _, m := range e.Messages {
		m = strings.ToLower(m)
		if strings.Contains(m, "invalid global id") || strings.Contains(m, "invalid id") {
			return true
		}
	}
	return false
}

// displayTitle joins product and variant titles, dropping Shopify's
// placeholder variant title.
func displayTitle(product, variant string) string {
	switch {
	case product == "":
		return variant
	case variant == "" || variant == "Default Title":
		return product
	default:
		return product + " - " + variant
	}
}

// decodeMoney decodes a Money scalar, which the Admin API sends as a decimal
// string. Plain JSON numbers are accepted too.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = n.String()
	default:
		return decimal.Zero, errors.Errorf("unexpected money type %s", d.Next())
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse money")
	}
	return v, nil
}
