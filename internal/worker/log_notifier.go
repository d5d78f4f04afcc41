package worker

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier records deliveries in the log. It stands in when no
// notification transport is configured so the pipeline stays exercised
// in every environment.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, eventType string, payload []byte) error {
	n.logger.Info().
		Str("event", eventType).
		RawJSON("payload", payload).
		Msg("notification")
	return nil
}
