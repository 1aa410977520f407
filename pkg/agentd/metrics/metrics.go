package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "agent_deployment"
	subsystem = "agentd"

	StatusOK    = "ok"
	StatusError = "error"

	LabelStatus          = "status"
	LabelDeploymentState = "deployment_state"
	LabelStep            = "step"
	LabelReason          = "reason"
)

func statusLabel(err error) string {
	if err == nil {
		return StatusOK
	}
	return StatusError
}

func DatabaseQuery(t time.Time, err error) {
	elapsed := time.Since(t)
	databaseQueries.With(prometheus.Labels{
		LabelStatus: statusLabel(err),
	}).Observe(elapsed.Seconds())
}

// StateTransition counts a persisted move into state.
func StateTransition(state string) {
	stateTransitions.With(prometheus.Labels{
		LabelDeploymentState: state,
	}).Inc()
}

func StepDuration(step string, t time.Time, err error) {
	stepDuration.With(prometheus.Labels{
		LabelStep:   step,
		LabelStatus: statusLabel(err),
	}).Observe(time.Since(t).Seconds())
}

func StepRetry(step string) {
	stepRetries.With(prometheus.Labels{
		LabelStep: step,
	}).Inc()
}

func DeploymentFailed(state, reason string) {
	failures.With(prometheus.Labels{
		LabelDeploymentState: state,
		LabelReason:          reason,
	}).Inc()
}

func RunStarted() {
	running.Inc()
}

func RunFinished() {
	running.Dec()
}

func SetRegistered(n int) {
	registered.Set(float64(n))
}

func LeadTime(created time.Time) {
	leadTime.Observe(time.Since(created).Seconds())
}

var (
	databaseQueries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "database_queries",
		Help:      "time to execute database queries",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.LinearBuckets(0.005, 0.005, 20),
	},
		[]string{
			LabelStatus,
		},
	)

	stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "state_transition",
		Help:      "persisted deployment state transitions",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelDeploymentState,
		},
	)

	stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "step_duration_seconds",
		Help:      "time spent in each deployment step",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	},
		[]string{
			LabelStep,
			LabelStatus,
		},
	)

	stepRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "step_retries",
		Help:      "number of retried attempts within deployment steps",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelStep,
		},
	)

	failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "failures",
		Help:      "deployment runs that stopped with an error",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelDeploymentState,
			LabelReason,
		},
	)

	running = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "running",
		Help:      "number of deployment runs in progress",
		Namespace: namespace,
		Subsystem: subsystem,
	})

	registered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "registered",
		Help:      "number of agents known to the orchestrator",
		Namespace: namespace,
		Subsystem: subsystem,
	})

	leadTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:      "lead_time_seconds",
		Help:      "the time it takes from a deployment request until the agent is alive",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(databaseQueries)
	prometheus.MustRegister(stateTransitions)
	prometheus.MustRegister(stepDuration)
	prometheus.MustRegister(stepRetries)
	prometheus.MustRegister(failures)
	prometheus.MustRegister(running)
	prometheus.MustRegister(registered)
	prometheus.MustRegister(leadTime)
}
