package report

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dpup/trailguide/server/internal/config"
)

// SetupSentry initialises the global Sentry client. An empty DSN leaves the
// client disabled; every report call is then a no-op.
func SetupSentry(cfg config.ReportConfig, version string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          version,
		EnableTracing:    cfg.SentryDSN != "",
		TracesSampleRate: 0.2,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	ConfigureScope(cfg.Environment, version)
	return nil
}

// ConfigureScope sets global Sentry scope tags related to the runtime and host
func ConfigureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("env", env)
		scope.SetTag("app_version", version)
		scope.SetTag("go_version", runtime.Version())
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": getHostname(),
		})
	})
}

// FlushSentry waits briefly for buffered events to be delivered
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
