package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "login_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "refresh_total",
		Help:      "Refresh-token exchanges by outcome.",
	}, []string{"outcome"})

	sweepPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "auth",
		Name:      "sweep_purged_tokens_total",
		Help:      "Refresh-token rows removed by the background sweeper.",
	})
)

const (
	outcomeSuccess     = "success"
	outcomeInvalid     = "invalid_credentials"
	outcomeLocked      = "locked"
	outcomeDeactivated = "deactivated"
	outcomeError       = "error"
)
