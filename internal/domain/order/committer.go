package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Sentinel errors for the two commit phases.
var (
	ErrDraftCreationFailed = errors.New("draft creation failed")
	ErrDraftOrphaned       = errors.New("draft orphaned")
)

// State is the progress of a single two-phase commit.
type State int

const (
	StateIdle State = iota
	StateDraftCreated
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraftCreated:
		return "draft_created"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DraftCreationError indicates phase 1 failed. No draft exists, so there is
// nothing to compensate and the request may simply be resubmitted.
type DraftCreationError struct {
	// UserErrors holds field-level validation errors, if the remote reported any.
	UserErrors []FieldError
	Err        error
}

func (e *DraftCreationError) Error() string {
	return fmt.Sprintf("draft creation failed: %v", e.Err)
}

func (e *DraftCreationError) Unwrap() error { return e.Err }

func (e *DraftCreationError) Is(target error) bool { return target == ErrDraftCreationFailed }

// DraftOrphanedError indicates phase 2 failed after phase 1 succeeded: the
// draft exists on the remote system but was never turned into an order.
// Draft identifies it for compensation.
type DraftOrphanedError struct {
	Draft Handle
	Err   error
}

func (e *DraftOrphanedError) Error() string {
	return fmt.Sprintf("draft %s orphaned: %v", e.Draft.ID, e.Err)
}

func (e *DraftOrphanedError) Unwrap() error { return e.Err }

func (e *DraftOrphanedError) Is(target error) bool { return target == ErrDraftOrphaned }

// Committer drives the non-atomic create-then-complete protocol against the
// remote order system. It does not retry and does not deduplicate.
type Committer struct {
	remote  Remote
	timeout time.Duration
}

// NewCommitter creates a Committer. Each remote call is bounded by timeout;
// a zero timeout leaves calls bounded only by the caller's context.
func NewCommitter(remote Remote, timeout time.Duration) *Committer {
	return &Committer{
		remote:  remote,
		timeout: timeout,
	}
}

// Commit creates a draft from d and completes it with payment already
// captured. On success only the finalized order is returned. A failure of
// the completion call is reported as *DraftOrphanedError. Completion ignores
// cancellation of ctx once the draft has been created.
func (c *Committer) Commit(ctx context.Context, d Draft) (*Finalized, error) {
	lg := zctx.From(ctx)
	state := StateIdle

	h, err := c.create(ctx, d)
	if err != nil {
		lg.Warn("Draft creation failed",
			zap.Stringer("from", state),
			zap.Stringer("state", StateFailed),
			zap.Error(err),
		)
		return nil, err
	}
	state = StateDraftCreated
	lg.Info("Draft order created",
		zap.Stringer("state", state),
		zap.String("draft_id", h.ID),
		zap.String("draft_name", h.Name),
	)

	// The payment is captured and the draft exists: caller cancellation
	// (client disconnect, server shutdown) must not strand it. Completion
	// is still bounded by the committer timeout.
	f, err := c.complete(context.WithoutCancel(ctx), h.ID)
	if err != nil {
		lg.Error("Draft order orphaned",
			zap.Stringer("from", state),
			zap.Stringer("state", StateFailed),
			zap.String("draft_id", h.ID),
			zap.String("draft_name", h.Name),
			zap.Error(err),
		)
		return nil, &DraftOrphanedError{Draft: *h, Err: err}
	}
	lg.Info("Draft order completed",
		zap.Stringer("state", StateFinalized),
		zap.String("order_id", f.ID),
		zap.String("order_name", f.Name),
	)
	return f, nil
}

func (c *Committer) create(ctx context.Context, d Draft) (*Handle, error) {
	if len(d.LineItems) == 0 {
		return nil, &DraftCreationError{Err: errors.New("no line items")}
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	h, err := c.remote.CreateDraft(ctx, d)
	if err != nil {
		var ue *UserErrors
		if errors.As(err, &ue) {
			return nil, &DraftCreationError{UserErrors: ue.Errors, Err: err}
		}
		return nil, &DraftCreationError{Err: err}
	}
	if h == nil || h.ID == "" {
		return nil, &DraftCreationError{Err: errors.New("remote returned no draft")}
	}
	return h, nil
}

func (c *Committer) complete(ctx context.Context, draftID string) (*Finalized, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	// Payment was captured out-of-band by the gateway.
	f, err := c.remote.CompleteDraft(ctx, draftID, false)
	if err != nil {
		return nil, err
	}
	if f == nil || f.ID == "" {
		return nil, errors.New("remote returned no order")
	}
	return f, nil
}

func (c *Committer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
