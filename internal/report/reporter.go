package report

import (
	"github.com/getsentry/sentry-go"
)

// Options provides optional data for a report
type Options struct {
	ExtraContext map[string]interface{}
	Tags         map[string]string
	Level        sentry.Level
}

// Reporter sends unexpected failures to an error tracker
type Reporter interface {
	Report(err error, opts Options)
}

// SentryReporter reports through the global Sentry hub
type SentryReporter struct{}

// Report captures err with the given tags, context and level (default error)
func (SentryReporter) Report(err error, opts Options) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if opts.ExtraContext != nil {
			scope.SetContext("extra", opts.ExtraContext)
		}
		for k, v := range opts.Tags {
			scope.SetTag(k, v)
		}
		level := opts.Level
		if level == "" {
			level = sentry.LevelError
		}
		scope.SetLevel(level)
		sentry.CaptureException(err)
	})
}

// Nop drops every report
type Nop struct{}

func (Nop) Report(error, Options) {}
