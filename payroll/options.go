package payroll

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type options struct {
	clock     Clock
	logger    *zap.Logger
	maxAmount decimal.Decimal
}

// Option configures the payroll services.
type Option func(*options)

// WithClock sets the source of "now" and "today".
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxAmount sets the sanity ceiling on a single transaction. Zero disables it.
func WithMaxAmount(d decimal.Decimal) Option {
	return func(o *options) { o.maxAmount = d }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:     time.Now,
		logger:    zap.NewNop(),
		maxAmount: DefaultMaxTransactionAmount,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) today() Date {
	return DateOf(o.clock())
}
