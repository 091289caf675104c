package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"newsbot/orchestrator"
	"newsbot/types"
)

// TriggerAll in TriggerCommand.Channel polls every channel
const TriggerAll = "all"

// TriggerCommand asks the service to run a poll cycle out of schedule
type TriggerCommand struct {
	Channel     string `json:"channel"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// CycleRunner runs poll cycles on demand
type CycleRunner interface {
	RunOnce(ctx context.Context, channel string) (*types.CycleReport, error)
	RunAll(ctx context.Context) map[string]error
}

// NewTriggerHandler builds the message handler for trigger commands. Unknown
// channels and busy channels are acknowledged and dropped; only an interrupted
// run leaves the message for redelivery.
func NewTriggerHandler(runner CycleRunner, logger *slog.Logger) *TypedMessageHandler[TriggerCommand] {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedMessageHandler[TriggerCommand]{
		Validate: func(msg *TriggerCommand) bool {
			msg.Channel = strings.TrimSpace(msg.Channel)
			return true
		},
		Process: func(ctx context.Context, msg *TriggerCommand) error {
			if msg.Channel == "" || msg.Channel == TriggerAll {
				errs := runner.RunAll(ctx)
				for name, err := range errs {
					logger.Warn("kafka: triggered cycle failed", "channel", name, "error", err)
				}
				return ctx.Err()
			}

			report, err := runner.RunOnce(ctx, msg.Channel)
			switch {
			case err == nil:
				logger.Info("kafka: triggered cycle finished",
					"channel", msg.Channel, "requested_by", msg.RequestedBy,
					"delivered", report.Count(types.OutcomeDelivered))
				return nil
			case errors.Is(err, orchestrator.ErrUnknownChannel), errors.Is(err, orchestrator.ErrCycleInProgress):
				logger.Warn("kafka: trigger ignored", "channel", msg.Channel, "error", err)
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				logger.Warn("kafka: triggered cycle failed", "channel", msg.Channel, "error", err)
				return nil
			}
		},
		AlwaysMark: true,
		Logger:     logger,
	}
}
