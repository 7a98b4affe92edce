package rx

import "github.com/joeycumines/logiface"

// SchedulerOption configures the schedulers constructed by
// [NewScheduler], [NewTrampolineScheduler], and [NewPoolScheduler].
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	logger *logiface.Logger[logiface.Event]
}

func applySchedulerOptions(opts []SchedulerOption) schedulerConfig {
	var cfg schedulerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger routes ReportFailure through a structured logger instead of
// the stderr fallback. Obtain the generic logger view via
// logiface's Logger.Logger method when using a concrete event type.
//
// Panics if l is nil.
func WithLogger(l *logiface.Logger[logiface.Event]) SchedulerOption {
	if l == nil {
		panic("rx: WithLogger requires non-nil logger")
	}
	return func(c *schedulerConfig) {
		c.logger = l
	}
}
