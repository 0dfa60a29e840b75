package services

import "github.com/prometheus/client_golang/prometheus"

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"}, // success|invalid_credentials|error
	)
	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Registration attempts by outcome.",
		},
		[]string{"outcome"}, // success|password_mismatch|email_taken|error
	)
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detections_total",
			Help: "Recorded detections by verdict.",
		},
		[]string{"result"}, // FAKE|REAL|failed|replayed
	)
)

func init() {
	prometheus.MustRegister(loginsTotal, registrationsTotal, detectionsTotal)
}
