package deploy

import (
	"github.com/rs/zerolog/log"

	"github.com/slipway-sh/slipway/internal/pubsub"
)

// ProgressEvent is published on every state transition of a deploy.
type ProgressEvent struct {
	RunID       string
	Environment string
	State       string
	Message     string
}

type logSubscriber struct{}

func (logSubscriber) ConsumeEvent(e *ProgressEvent) error {
	log.Info().
		Str("run", e.RunID).
		Str("environment", e.Environment).
		Str("state", e.State).
		Msg(e.Message)
	return nil
}

// NewProgressPublisher returns a publisher with the default log subscriber
// attached, so every transition emits one human-readable line.
func NewProgressPublisher() pubsub.Publisher[ProgressEvent] {
	p := pubsub.NewSimplePublisher[ProgressEvent]()
	p.AddSubscriber(logSubscriber{})
	return p
}
