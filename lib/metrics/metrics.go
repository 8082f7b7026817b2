// Package metrics provides Prometheus counters for component traffic:
// payloads crossing the process boundary, identity map lookups and forks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for hxmodel. A nil *Collector is
// valid and records nothing.
type Collector struct {
	// Wire metrics
	PayloadsEncoded *prometheus.CounterVec
	PayloadsDecoded *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec

	// Identity map metrics
	IdentityLookups    *prometheus.CounterVec
	IdentityCollisions *prometheus.CounterVec

	// Fork metrics
	Forks *prometheus.CounterVec
}

// New creates a collector registered with reg. A nil reg leaves the metrics
// unregistered (useful in tests).
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		PayloadsEncoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "payloads_encoded_total",
				Help:      "Total number of component payloads encoded",
			},
			[]string{"component", "mode"},
		),
		PayloadsDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "payloads_decoded_total",
				Help:      "Total number of component payloads decoded",
			},
			[]string{"component", "mode"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "decode_errors_total",
				Help:      "Total number of payloads rejected while decoding",
			},
			[]string{"mode"},
		),
		IdentityLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "identity_lookups_total",
				Help:      "Identity map lookups by result (hit, miss, fork)",
			},
			[]string{"component", "result"},
		),
		IdentityCollisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "identity_collisions_total",
				Help:      "Identifier collisions rejected by an identity map",
			},
			[]string{"component"},
		),
		Forks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxmodel",
				Name:      "forks_total",
				Help:      "Forks created by kind (class, instance)",
			},
			[]string{"component", "kind"},
		),
	}
}

// Mode returns the label value for a payload mode.
func Mode(sensitive bool) string {
	if sensitive {
		return "encrypted"
	}
	return "signed"
}

// RecordEncode records an encoded payload.
func (c *Collector) RecordEncode(component string, sensitive bool) {
	if c == nil {
		return
	}
	c.PayloadsEncoded.WithLabelValues(component, Mode(sensitive)).Inc()
}

// RecordDecode records a decoded payload.
func (c *Collector) RecordDecode(component string, sensitive bool) {
	if c == nil {
		return
	}
	c.PayloadsDecoded.WithLabelValues(component, Mode(sensitive)).Inc()
}

// RecordDecodeError records a rejected payload.
func (c *Collector) RecordDecodeError(sensitive bool) {
	if c == nil {
		return
	}
	c.DecodeErrors.WithLabelValues(Mode(sensitive)).Inc()
}

// RecordLookup records an identity map lookup result.
func (c *Collector) RecordLookup(component, result string) {
	if c == nil {
		return
	}
	c.IdentityLookups.WithLabelValues(component, result).Inc()
}

// RecordCollision records a rejected identifier collision.
func (c *Collector) RecordCollision(component string) {
	if c == nil {
		return
	}
	c.IdentityCollisions.WithLabelValues(component).Inc()
}

// RecordFork records a fork.
func (c *Collector) RecordFork(component, kind string) {
	if c == nil {
		return
	}
	c.Forks.WithLabelValues(component, kind).Inc()
}
