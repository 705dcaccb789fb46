package tune

import (
	"runtime"

	"github.com/YuminosukeSato/apmkit/pkg/log"
)

type config struct {
	nJobs     int
	selection Selection
	logger    log.Logger
	metrics   *Metrics
}

// Option configures Tune and CrossValidate.
type Option func(*config)

// WithNJobs は同時に評価するリサンプル数の上限を設定する（0 以下で CPU 数）
func WithNJobs(n int) Option {
	return func(c *config) { c.nJobs = n }
}

// WithSelection sets the rule that picks the final grid point.
func WithSelection(s Selection) Option {
	return func(c *config) { c.selection = s }
}

// WithLogger replaces the "tune" component logger.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records fits and runs in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func newConfig(opts []Option) *config {
	c := &config{selection: SelectBest}
	for _, opt := range opts {
		opt(c)
	}
	if c.nJobs <= 0 {
		c.nJobs = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("tune")
	}
	return c
}
