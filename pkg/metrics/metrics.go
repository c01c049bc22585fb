package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Subsystem: "session", Name: "transitions_total", Help: "Session status transitions."},
		[]string{"from", "to"},
	)
	LoginResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Subsystem: "session", Name: "login_results_total", Help: "Login attempts by outcome."},
		[]string{"result"},
	)
	AuthorizationExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "eis", Subsystem: "transport", Name: "authorization_expired_total", Help: "401 responses observed on authenticated calls."},
	)
	APIResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Subsystem: "transport", Name: "responses_total", Help: "Backend responses by status class."},
		[]string{"class"},
	)
	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "eis", Subsystem: "guard", Name: "decisions_total", Help: "Route guard decisions."},
		[]string{"decision"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SessionTransitions)
	reg.MustRegister(LoginResults)
	reg.MustRegister(AuthorizationExpired)
	reg.MustRegister(APIResponses)
	reg.MustRegister(GuardDecisions)
}
