package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pushSendsTotal counts per-device FCM delivery attempts by outcome.
var pushSendsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_sends_total",
		Help: "Total number of per-device push delivery attempts",
	},
	[]string{"outcome"},
)
