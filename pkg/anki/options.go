package anki

import (
	"go.uber.org/zap"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
)

type options struct {
	errorHandling issues.ErrorHandling
	logger        *zap.SugaredLogger
	compact       bool
	tempDir       string
}

// Option configures reading, writing and conversion.
type Option func(*options)

// WithErrorHandling selects strict or best-effort handling of row-level
// problems. Best-effort is the default.
func WithErrorHandling(mode issues.ErrorHandling) Option {
	return func(o *options) {
		o.errorHandling = mode
	}
}

// WithLogger sets the logger issues are echoed to.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompaction drops decks and note types no note uses from the
// universal result.
func WithCompaction(enabled bool) Option {
	return func(o *options) {
		o.compact = enabled
	}
}

// WithTempDir sets the parent of the package working directories.
// The system temp dir is used when unset.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

func newOptions(opts []Option) *options {
	o := &options{errorHandling: issues.BestEffort}
	for _, opt := range opts {
		opt(o)
	}
	if o.errorHandling == "" {
		o.errorHandling = issues.BestEffort
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	return o
}

func (o *options) collector() *issues.Collector {
	return issues.NewCollector(o.errorHandling, o.logger)
}
