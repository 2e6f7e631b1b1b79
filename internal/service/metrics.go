package service

import "github.com/prometheus/client_golang/prometheus"

var sessionEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "session_events_total", Help: "Session token lifecycle events"},
	[]string{"event"},
)

func init() { prometheus.MustRegister(sessionEvents) }
