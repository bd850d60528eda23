package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nodeloom/loom/pkg/eventbus"
	"github.com/nodeloom/loom/pkg/eventbus/kafka"
)

// NewEventBus selects an event bus implementation. "memory" runs in-process
// and only reaches subscribers in the same binary; "kafka" fans out to
// worker processes.
func NewEventBus(provider, consumerGroup string, brokers []string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "memory", "":
		return eventbus.NewInProcessEventBus()
	case "kafka":
		bus, err := kafka.NewEventBus(brokers, consumerGroup)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka event bus: %w", err))
		}

		return bus
	default:
		panic("unsupported event bus provider: " + provider)
	}
}
