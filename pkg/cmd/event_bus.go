// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/ecospheres/isomorphe/pkg/channels/gochannel"
	"github.com/ecospheres/isomorphe/pkg/eventbus"
)

// NewEventBus creates the in-process event bus carrying job lifecycle events.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(logger))

	return eventbus.NewWatermillEventBus(pub, sub)
}
