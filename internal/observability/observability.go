// Package observability configures the process-wide structured logger
// used by the rest of the bridge (including go-chi/httplog's request
// logging middleware, which logs through whatever slog.Logger is current).
package observability

import (
	"fmt"
	"log/slog"
	"os"
)

// Instrument installs a slog.Logger at the given level and format
// ("text"|"json") as the process default. It is called once at startup,
// before the App is constructed, so every component that logs through
// slog.Default() picks it up.
func Instrument(level slog.Level, format string) error {
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
