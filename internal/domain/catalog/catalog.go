package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the remote catalog does not know an item reference.
var ErrNotFound = errors.New("catalog item not found")

// Quote is the authoritative price of a catalog item, fetched fresh per request.
type Quote struct {
	// Ref is the remote identifier the quote was fetched for.
	Ref       string
	UnitPrice decimal.Decimal
	Title     string
}

// Catalog provides read-only price lookups against the remote catalog.
type Catalog interface {
	Lookup(ctx context.Context, ref string) (*Quote, error)
}
