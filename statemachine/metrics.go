package statemachine

import (
	"strconv"

	"github.com/OneOfOne/xxhash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome constants.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeDropped = "dropped"
)

const maxMachineLabelLength = 48

// Metric definitions with appropriate labels.
var (
	// transitionsTotal tracks executed transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transitions_total",
		Help: "Total number of executed transitions by machine, from_state, to_state and reason",
	}, []string{"machine", "from_state", "to_state", "reason"})

	// rejectionsTotal tracks posts that did not change state.
	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transition_rejections_total",
		Help: "Total number of rejected stimuli by machine and cause (no_transition, same_state, guard)",
	}, []string{"machine", "cause"})

	// overridesTotal tracks forced state changes.
	overridesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_overrides_total",
		Help: "Total number of forced state overrides by machine",
	}, []string{"machine"})

	// actionDuration tracks individual action execution time.
	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsm_action_duration_seconds",
		Help:    "Duration of enter/leave action execution by machine, phase, action and outcome",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"machine", "phase", "action", "outcome"})

	// deferredPending tracks commands enqueued but not yet applied.
	deferredPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsm_deferred_pending",
		Help: "Number of commands waiting in a deferred engine queue",
	}, []string{"machine"})

	// deferredProcessed tracks commands taken off a deferred engine queue.
	deferredProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_deferred_processed_total",
		Help: "Total number of deferred commands by machine and outcome (success, error, dropped)",
	}, []string{"machine", "outcome"})
)

// sanitizeMachine keeps the machine label short and non-empty. Long names
// are truncated and suffixed with a hash so distinct machines stay distinct.
func sanitizeMachine(name string) string {
	if name == "" {
		return "unnamed"
	}

	if len(name) <= maxMachineLabelLength {
		return name
	}

	sum := strconv.FormatUint(uint64(xxhash.ChecksumString32(name)), 16)

	return name[:maxMachineLabelLength-len(sum)-1] + "-" + sum
}
