package application

import "log/slog"

// ModuleName is the "module" attribute on every council-engine log line.
const ModuleName = "incident-governance/council-engine"

// ResolveLogger falls back to slog.Default when no logger was wired.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LayerLogger tags a logger with the module and layer attributes.
func LayerLogger(logger *slog.Logger, layer string) *slog.Logger {
	return ResolveLogger(logger).With("module", ModuleName, "layer", layer)
}
