// Package telemetry forwards application events and exceptions to Azure
// Application Insights.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
)

const cloudRole = "taskflow-api"

type Tracker interface {
	TrackEvent(ctx context.Context, name string, properties map[string]any)
	TrackException(ctx context.Context, err error, properties map[string]any)
	// Close flushes buffered telemetry, giving up when ctx is done.
	Close(ctx context.Context) error
}

// New returns a no-op tracker when key is empty and an Application Insights
// client otherwise. An empty endpoint keeps the SDK's public ingestion URL.
func New(key, endpoint string, logger *slog.Logger) Tracker {
	if key == "" {
		return Noop{}
	}

	cfg := appinsights.NewTelemetryConfiguration(key)
	if endpoint != "" {
		cfg.EndpointUrl = endpoint
	}
	client := appinsights.NewTelemetryClientFromConfig(cfg)
	client.Context().Tags.Cloud().SetRole(cloudRole)

	return &AppInsights{client: client, logger: logger}
}

type Noop struct{}

func (Noop) TrackEvent(context.Context, string, map[string]any)    {}
func (Noop) TrackException(context.Context, error, map[string]any) {}
func (Noop) Close(context.Context) error                           { return nil }

// AppInsights buffers telemetry in the SDK's in-memory channel, which submits
// it in batches from its own goroutine.
type AppInsights struct {
	client appinsights.TelemetryClient
	logger *slog.Logger
}

func (t *AppInsights) TrackEvent(ctx context.Context, name string, properties map[string]any) {
	event := appinsights.NewEventTelemetry(name)
	event.Properties = withProperties(event.Properties, properties)
	t.client.Track(event)

	t.logger.DebugContext(ctx, "telemetry event tracked", "event", "telemetry", "name", name)
}

func (t *AppInsights) TrackException(ctx context.Context, err error, properties map[string]any) {
	exception := appinsights.NewExceptionTelemetry(err)
	exception.SeverityLevel = appinsights.Error
	exception.Properties = withProperties(exception.Properties, properties)
	t.client.Track(exception)

	t.logger.DebugContext(ctx, "telemetry exception tracked", "event", "telemetry", "error", err.Error())
}

func (t *AppInsights) Close(ctx context.Context) error {
	select {
	case <-t.client.Channel().Close():
		return nil
	case <-ctx.Done():
		t.logger.WarnContext(ctx, "telemetry flush abandoned", "event", "telemetry_flush_failed", "error", ctx.Err().Error())
		return ctx.Err()
	}
}

// withProperties stringifies src into dst, the only value type custom
// dimensions accept.
func withProperties(dst map[string]string, src map[string]any) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if v == nil {
			continue
		}
		dst[k] = fmt.Sprint(v)
	}
	return dst
}
