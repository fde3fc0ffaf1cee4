package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is a single line on a draft order. Catalog items carry a VariantID;
// custom items (add-ons, surcharges) carry a Title and UnitPrice instead.
type LineItem struct {
	VariantID string
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Custom reports whether the line item is not backed by a catalog variant.
func (l LineItem) Custom() bool {
	return l.VariantID == ""
}

// Attribute is a key/value pair stored in the remote order's metadata.
type Attribute struct {
	Key   string
	Value string
}

// Draft is the input for phase 1 of the commit.
type Draft struct {
	LineItems  []LineItem
	Email      string
	Phone      string
	Note       string
	Tags       []string
	Attributes []Attribute
}

// Handle identifies a draft order created on the remote system. It is never
// returned to callers as a success result.
type Handle struct {
	ID   string
	Name string
}

// Finalized is a draft that has been completed into a real order.
type Finalized struct {
	ID   string
	Name string
}

// FieldError is a field-level validation error reported by the remote system.
type FieldError struct {
	Field   []string
	Message string
}

// UserErrors is returned by a Remote when the remote system rejected the
// request with field-level validation errors.
type UserErrors struct {
	Op     string
	Errors []FieldError
}

func (e *UserErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return fmt.Sprintf("%s rejected: %s", e.Op, strings.Join(msgs, "; "))
}

// Remote is the remote order system driven by the Committer.
type Remote interface {
	CreateDraft(ctx context.Context, d Draft) (*Handle, error)
	CompleteDraft(ctx context.Context, draftID string, paymentPending bool) (*Finalized, error)
}
