package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// commandCounter counts dispatched commands by handler and command name.
	commandCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_commands_total",
			Help: "Total number of commands dispatched by handler and command",
		},
		[]string{"handler", "command"},
	)

	// commandErrorCounter counts failed dispatches. kind is "user" for
	// user-facing errors and "internal" for everything else.
	commandErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_command_errors_total",
			Help: "Total number of failed command dispatches by handler and error kind",
		},
		[]string{"handler", "kind"},
	)

	// reactionCounter counts reaction-triggered dispatches by handler.
	reactionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_reactions_total",
			Help: "Total number of reaction-triggered commands by handler and reaction",
		},
		[]string{"handler", "reaction"},
	)
)
