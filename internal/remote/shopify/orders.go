package shopify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/puja-checkout/internal/domain/order"
)

var _ order.Remote = (*Client)(nil)

const draftOrderCreateMutation = `mutation draftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      name
    }
    userErrors {
      field
      message
    }
  }
}`

const draftOrderCompleteMutation = `mutation draftOrderComplete($id: ID!, $paymentPending: Boolean) {
  draftOrderComplete(id: $id, paymentPending: $paymentPending) {
    draftOrder {
      id
      order {
        id
        name
      }
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateDraft creates a draft order. Field-level rejections are returned as
// *order.UserErrors.
func (c *Client) CreateDraft(ctx context.Context, d order.Draft) (*order.Handle, error) {
	var (
		h          *order.Handle
		userErrors []order.FieldError
	)
	err := c.do(ctx, "draftOrderCreate", draftOrderCreateMutation,
		func(e *jx.Encoder) {
			e.FieldStart("input")
			encodeDraftInput(e, d)
		},
		func(dec *jx.Decoder) error {
			return payload(dec, "draftOrderCreate", &userErrors, func(dec *jx.Decoder, key string) error {
				if key != "draftOrder" {
					return dec.Skip()
				}
				if dec.Next() == jx.Null {
					return dec.Null()
				}
				h = &order.Handle{}
				return dec.Obj(func(dec *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						h.ID, err = dec.Str()
					case "name":
						h.Name, err = decodeString(dec)
					default:
						err = dec.Skip()
					}
					return err
				})
			})
		},
	)
	if err != nil {
		return nil, err
	}
	if len(userErrors) > 0 {
		return nil, &order.UserErrors{Op: "draftOrderCreate", Errors: userErrors}
	}
	if h == nil {
		return nil, errors.New("draftOrderCreate: no draft order in response")
	}
	return h, nil
}

// CompleteDraft turns a draft order into an order.
func (c *Client) CompleteDraft(ctx context.Context, draftID string, paymentPending bool) (*order.Finalized, error) {
	var (
		f          *order.Finalized
		userErrors []order.FieldError
	)
	err := c.do(ctx, "draftOrderComplete", draftOrderCompleteMutation,
		func(e *jx.Encoder) {
			e.FieldStart("id")
			e.Str(draftID)
			e.FieldStart("paymentPending")
			e.Bool(paymentPending)
		},
		func(dec *jx.Decoder) error {
			return payload(dec, "draftOrderComplete", &userErrors, func(dec *jx.Decoder, key string) error {
				if key != "draftOrder" || dec.Next() == jx.Null {
					return dec.Skip()
				}
				return dec.Obj(func(dec *jx.Decoder, key string) error {
					if key != "order" || dec.Next() == jx.Null {
						return dec.Skip()
					}
					f = &order.Finalized{}
					return dec.Obj(func(dec *jx.Decoder, key string) error {
						var err error
						switch key {
						case "id":
							f.ID, err = dec.Str()
						case "name":
							f.Name, err = decodeString(dec)
						default:
							err = dec.Skip()
						}
						return err
					})
				})
			})
		},
	)
	if err != nil {
		return nil, err
	}
	if len(userErrors) > 0 {
		return nil, &order.UserErrors{Op: "draftOrderComplete", Errors: userErrors}
	}
	if f == nil {
		return nil, errors.New("draftOrderComplete: no order in response")
	}
	return f, nil
}

// payload decodes {"<field>": {..., "userErrors": [...]}} from a mutation's
// data, handing every other key of the payload object to fn.
func payload(
	d *jx.Decoder,
	field string,
	userErrors *[]order.FieldError,
	fn func(d *jx.Decoder, key string) error,
) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != field || d.Next() == jx.Null {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "userErrors" {
				return fn(d, key)
			}
			return d.Arr(func(d *jx.Decoder) error {
				fe, err := decodeFieldError(d)
				if err != nil {
					return err
				}
				*userErrors = append(*userErrors, fe)
				return nil
			})
		})
	})
}

func decodeFieldError(d *jx.Decoder) (order.FieldError, error) {
	var fe order.FieldError
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			var err error
			fe.Message, err = d.Str()
			return err
		case "field":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				fe.Field = append(fe.Field, s)
				return err
			})
		default:
			return d.Skip()
		}
	})
	return fe, err
}

// encodeDraftInput writes a DraftOrderInput object.
func encodeDraftInput(e *jx.Encoder, d order.Draft) {
	e.ObjStart()

	e.FieldStart("lineItems")
	e.ArrStart()
	for _, li := range d.LineItems {
		e.ObjStart()
		if li.Custom() {
			e.FieldStart("title")
			e.Str(li.Title)
			e.FieldStart("originalUnitPrice")
			e.Str(li.UnitPrice.StringFixed(2))
			e.FieldStart("requiresShipping")
			e.Bool(false)
		} else {
			e.FieldStart("variantId")
			e.Str(li.VariantID)
		}
		e.FieldStart("quantity")
		e.Int(li.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	if d.Email != "" {
		e.FieldStart("email")
		e.Str(d.Email)
	}
	if d.Phone != "" {
		e.FieldStart("phone")
		e.Str(d.Phone)
	}
	if d.Note != "" {
		e.FieldStart("note")
		e.Str(d.Note)
	}

	e.FieldStart("tags")
	e.ArrStart()
	for _, t := range d.Tags {
		e.Str(t)
	}
	e.ArrEnd()

	e.FieldStart("customAttributes")
	e.ArrStart()
	for _, a := range d.Attributes {
		e.ObjStart()
		e.FieldStart("key")
		e.Str(a.Key)
		e.FieldStart("value")
		e.Str(a.Value)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.ObjEnd()
}
