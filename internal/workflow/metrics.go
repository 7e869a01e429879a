package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess   = "success"
	outcomeDenied    = "denied"
	outcomeRejected  = "rejected"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

var transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_workflow_outcomes_total",
	Help: "Terminal workflow outcomes by action.",
}, []string{"action", "outcome"})
