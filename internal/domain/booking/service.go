package booking

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/puja-checkout/internal/domain/catalog"
	"github.com/xenking/puja-checkout/internal/domain/order"
	"github.com/xenking/puja-checkout/internal/domain/payment"
)

// Config holds the booking policy values.
type Config struct {
	// PrasadPrice is the fixed price of the prasad add-on.
	PrasadPrice decimal.Decimal
	// Tags are attached to every draft order in addition to the payment tag.
	Tags []string
	// LookupTimeout bounds the catalog lookup. Zero means unbounded.
	LookupTimeout time.Duration
}

// Result is a successfully fulfilled booking.
type Result struct {
	Order order.Finalized
	Total decimal.Decimal
	Title string
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for stage spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for outcome metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service runs the fulfillment protocol for one booking at a time: verify
// the payment, recalculate the price, reconcile it with the submitted total
// and commit the order. Each stage short-circuits the rest on failure.
type Service struct {
	verifier  *payment.Verifier
	catalog   catalog.Catalog
	committer *order.Committer
	cfg       Config

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	outcomes       metric.Int64Counter
}

// NewService creates a booking Service with the required domain dependencies.
func NewService(
	cfg Config,
	verifier *payment.Verifier,
	cat catalog.Catalog,
	committer *order.Committer,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		verifier:       verifier,
		catalog:        cat,
		committer:      committer,
		cfg:            cfg,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer("github.com/xenking/puja-checkout/internal/domain/booking")
	outcomes, err := s.meterProvider.Meter("github.com/xenking/puja-checkout/internal/domain/booking").Int64Counter(
		"checkout.fulfillment.outcomes",
		metric.WithDescription("Fulfillment results by outcome kind"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcomes counter")
	}
	s.outcomes = outcomes

	return s, nil
}

// Fulfill verifies, prices, reconciles and commits req. Failures are
// terminal; classify them with KindOf.
func (s *Service) Fulfill(ctx context.Context, req Request) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "booking.Fulfill")
	defer func() { s.finish(ctx, span, rerr) }()

	ctx = zctx.With(ctx,
		zap.String("payment_id", req.Payment.PaymentID),
		zap.String("item_ref", req.ItemRef),
	)
	lg := zctx.From(ctx)

	// Stage 1: payment assertion.
	if err := s.verifier.Verify(req.Payment); err != nil {
		return nil, errors.Wrap(err, "verify payment")
	}

	// Stage 2: authoritative price. Client line items are checked before the
	// catalog call so a malformed request costs no remote round trip;
	// Recalculate checks them again for callers that use it directly.
	if err := validateLineItems(req); err != nil {
		return nil, err
	}
	quote, err := s.lookup(ctx, req.ItemRef)
	if err != nil {
		return nil, err
	}
	pricing, err := Recalculate(*quote, req, s.cfg.PrasadPrice)
	if err != nil {
		return nil, err
	}

	// Stage 3: never trust the client total.
	if err := Reconcile(pricing.Total, req.FormTotal); err != nil {
		lg.Warn("Submitted total rejected",
			zap.String("calculated", FormatAmount(pricing.Total)),
			zap.String("submitted", FormatAmount(req.FormTotal)),
		)
		return nil, err
	}

	// Stage 4: two-phase commit.
	f, err := s.committer.Commit(ctx, s.draft(req, pricing))
	if err != nil {
		return nil, errors.Wrap(err, "commit order")
	}

	lg.Info("Booking fulfilled",
		zap.String("order_name", f.Name),
		zap.String("total", FormatAmount(pricing.Total)),
	)
	return &Result{
		Order: *f,
		Total: pricing.Total,
		Title: quote.Title,
	}, nil
}

func (s *Service) lookup(ctx context.Context, ref string) (*catalog.Quote, error) {
	if ref == "" {
		return nil, &InvalidCatalogReferenceError{Ref: ref, Err: catalog.ErrNotFound}
	}

	ctx, span := s.tracer.Start(ctx, "booking.CatalogLookup")
	defer span.End()
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}

	q, err := s.catalog.Lookup(ctx, ref)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return nil, &InvalidCatalogReferenceError{Ref: ref, Err: err}
	case err != nil:
		return nil, &RemoteTransportError{Stage: "catalog lookup", Err: err}
	case q == nil:
		return nil, &RemoteTransportError{Stage: "catalog lookup", Err: errors.New("empty quote")}
	case !payment.InRange(q.UnitPrice) || q.UnitPrice.IsNegative():
		return nil, &RemoteTransportError{Stage: "catalog lookup", Err: errors.New("catalog price out of range")}
	}
	if q.Ref == "" {
		q.Ref = ref
	}
	return q, nil
}

// draft builds the phase 1 input. Every priced component becomes its own line
// so the remote order total matches the reconciled total.
func (s *Service) draft(req Request, p *Pricing) order.Draft {
	items := []order.LineItem{{VariantID: p.Quote.Ref, Quantity: 1}}
	for i, a := range req.AddOns {
		items = append(items, order.LineItem{
			Title:     addOnTitle(a, i),
			UnitPrice: a.Price,
			Quantity:  1,
		})
	}
	if p.Dakshina.IsPositive() {
		items = append(items, order.LineItem{Title: "Dakshina", UnitPrice: p.Dakshina, Quantity: 1})
	}
	if req.Prasad {
		items = append(items, order.LineItem{Title: "Prasad", UnitPrice: p.Prasad, Quantity: 1})
	}

	pid := req.Payment.PaymentID
	tags := append(slices.Clone(s.cfg.Tags), PaymentTag(pid))

	return order.Draft{
		LineItems:  items,
		Email:      req.Customer.Email,
		Phone:      req.Customer.Phone,
		Note:       fmt.Sprintf("Razorpay payment %s (order %s)", pid, req.Payment.OrderID),
		Tags:       tags,
		Attributes: attributes(req),
	}
}

// PaymentTag is the tag that marks every draft created for a payment, so a
// resubmitted booking can be recognised as a duplicate downstream.
func PaymentTag(paymentID string) string {
	return "payment:" + paymentID
}

func attributes(req Request) []order.Attribute {
	c := req.Customer
	var attrs []order.Attribute
	add := func(k, v string) {
		if v != "" {
			attrs = append(attrs, order.Attribute{Key: k, Value: v})
		}
	}
	add("Name", c.Name)
	add("Gotra", c.Gotra)
	add("Wish", c.Wish)

	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		add(k, c.Extra[k])
	}

	add("payment_id", req.Payment.PaymentID)
	add("razorpay_order_id", req.Payment.OrderID)
	if req.Prasad {
		add("prasad", "yes")
	}
	return attrs
}

func (s *Service) finish(ctx context.Context, span trace.Span, err error) {
	defer span.End()

	outcome := "ok"
	if err != nil {
		kind := KindOf(err)
		outcome = string(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		zctx.From(ctx).Warn("Booking failed", zap.String("kind", outcome), zap.Error(err))
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
