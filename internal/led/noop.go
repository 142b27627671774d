package led

import "log/slog"

type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(p Pattern) error {
	n.logger.Debug("LED control not available (no-op)", "pattern", p)
	return nil
}

func (n *noop) Name() string { return Disabled }
