package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the domain services and the session manager.
type Recorder interface {
	RecordTransition(from, to string)
	RecordPolicyViolation(reason string)
	RecordSignIn(role string)
	RecordStaleResponse()
	RecordPaymentConfirmed()
}

// Collector records SwishView metrics on a prometheus registry.
type Collector struct {
	transitions      *prometheus.CounterVec
	policyViolations *prometheus.CounterVec
	signIns          *prometheus.CounterVec
	staleResponses   prometheus.Counter
	payments         prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swishview_campaign_transitions_total",
			Help: "Campaign status transitions applied.",
		}, []string{"from", "to"}),
		policyViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swishview_policy_violations_total",
			Help: "Rejected campaign transitions and edits.",
		}, []string{"reason"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swishview_sign_ins_total",
			Help: "Resolved sign-ins by derived role.",
		}, []string{"role"}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swishview_stale_responses_total",
			Help: "Fetch results discarded because their session ended.",
		}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swishview_payments_confirmed_total",
			Help: "Payment confirmations that activated a campaign.",
		}),
	}
	reg.MustRegister(c.transitions, c.policyViolations, c.signIns, c.staleResponses, c.payments)
	return c
}

func (c *Collector) RecordTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordPolicyViolation(reason string) {
	c.policyViolations.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordSignIn(role string) {
	c.signIns.WithLabelValues(role).Inc()
}

func (c *Collector) RecordStaleResponse() {
	c.staleResponses.Inc()
}

func (c *Collector) RecordPaymentConfirmed() {
	c.payments.Inc()
}

// Handler exposes the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTransition(string, string) {}
func (Nop) RecordPolicyViolation(string)    {}
func (Nop) RecordSignIn(string)             {}
func (Nop) RecordStaleResponse()            {}
func (Nop) RecordPaymentConfirmed()         {}
