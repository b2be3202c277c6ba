// ABOUTME: Prometheus metrics for the validation API, exposed via the
// ABOUTME: /metrics endpoint registered in server.go.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// validationsTotal counts validation requests by outcome: "valid" and
// "invalid" for synchronous runs, "accepted" for async enqueues, "rejected"
// for requests refused before any validation ran, and "error" for internal
// failures.
var validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aidcheck_validations_total",
	Help: "Validation requests processed, by outcome.",
}, []string{"outcome"})
