package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource opens the capture backend named by cfg. Auto means malgo.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendMalgo, BackendAuto, "":
		logger.Debug("opening microphone",
			"sample_rate", cfg.SampleRate,
			"channels", cfg.Channels,
			"chunk", cfg.BufferDuration,
		)
		return NewMalgoSource(cfg, logger)
	default:
		return nil, fmt.Errorf("audioio: unsupported backend %q", cfg.Backend)
	}
}
