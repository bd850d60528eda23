package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewInProcessEventBus builds a bus backed by watermill's gochannel pub/sub.
// Events never leave the process; this is the default for single-binary
// deployments and tests.
func NewInProcessEventBus() *WatermillEventBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	return NewWatermillEventBus(pubSub, pubSub)
}
