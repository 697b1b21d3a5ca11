// Package metrics exposes Prometheus collectors for the tunnel and the
// escalation machinery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TunnelState          = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "dnstun_tunnel_state", Help: "1 for the current tunnel state, 0 otherwise"}, []string{"state"})
	TunnelEstablishTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "dnstun_tunnel_established_total", Help: "Tunnels established"})
	TunnelFailuresTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dnstun_tunnel_start_failures_total", Help: "Failed tunnel starts by kind"}, []string{"kind"})
	TunnelTeardownTotal  = promauto.NewCounter(prometheus.CounterOpts{Name: "dnstun_tunnel_teardown_total", Help: "Tunnels torn down"})
	PermissionTotal      = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dnstun_permission_results_total", Help: "Consent results by outcome"}, []string{"outcome"})
	EscalationStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dnstun_escalation_stage_total", Help: "Escalation stages entered"}, []string{"stage"})
	EscalationResumes    = promauto.NewCounter(prometheus.CounterOpts{Name: "dnstun_escalation_resumes_total", Help: "Escalations resolved by the user choosing to start"})
	DispatchErrorsTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dnstun_dispatch_errors_total", Help: "Alert dispatch failures by stage"}, []string{"stage"})
	TriggersTotal        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dnstun_triggers_total", Help: "Boot-class triggers accepted"}, []string{"signal"})
)

// knownStates lists every state label so the gauge always reports all of them.
var knownStates = []string{"idle", "permission_pending", "establishing", "active", "stopping"}

// SetTunnelState marks state as current.
func SetTunnelState(state string) {
	for _, s := range knownStates {
		TunnelState.WithLabelValues(s).Set(0)
	}
	TunnelState.WithLabelValues(state).Set(1)
}
