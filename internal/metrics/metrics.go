// Package metrics exposes Prometheus counters for circle activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and workers report to.
type Recorder interface {
	CircleCreated()
	SlugCollision()
	MembershipTransition(from, to string)
	InviteRedemption(outcome string)
	ContentCreated(kind string)
	CounterDrift(counter string, delta int64)
	InvitesSwept(count int64)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	circlesCreated prometheus.Counter
	slugCollisions prometheus.Counter
	memberships    *prometheus.CounterVec
	redemptions    *prometheus.CounterVec
	contentCreated *prometheus.CounterVec
	counterDrift   *prometheus.CounterVec
	invitesSwept   prometheus.Counter
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		circlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "circles_created_total",
			Help: "Circles created.",
		}),
		slugCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "circles_slug_collisions_total",
			Help: "Circle inserts that lost a race on the slug index.",
		}),
		memberships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circles_membership_transitions_total",
			Help: "Membership status changes by source and target status.",
		}, []string{"from", "to"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circles_invite_redemptions_total",
			Help: "Invite redemption attempts by outcome.",
		}, []string{"outcome"}),
		contentCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circles_content_created_total",
			Help: "Posts and comments created.",
		}, []string{"kind"}),
		counterDrift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circles_counter_drift_total",
			Help: "Absolute drift corrected by reconciliation, per counter.",
		}, []string{"counter"}),
		invitesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "circles_invites_swept_total",
			Help: "Expired invites deleted by the sweeper.",
		}),
	}

	reg.MustRegister(
		c.circlesCreated,
		c.slugCollisions,
		c.memberships,
		c.redemptions,
		c.contentCreated,
		c.counterDrift,
		c.invitesSwept,
	)
	return c
}

func (c *Collector) CircleCreated() { c.circlesCreated.Inc() }

func (c *Collector) SlugCollision() { c.slugCollisions.Inc() }

func (c *Collector) MembershipTransition(from, to string) {
	c.memberships.WithLabelValues(from, to).Inc()
}

func (c *Collector) InviteRedemption(outcome string) {
	c.redemptions.WithLabelValues(outcome).Inc()
}

func (c *Collector) ContentCreated(kind string) {
	c.contentCreated.WithLabelValues(kind).Inc()
}

// CounterDrift records |delta|; zero drift is not recorded.
func (c *Collector) CounterDrift(counter string, delta int64) {
	if delta == 0 {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	c.counterDrift.WithLabelValues(counter).Add(float64(delta))
}

func (c *Collector) InvitesSwept(count int64) {
	c.invitesSwept.Add(float64(count))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) CircleCreated() {}

func (Nop) SlugCollision() {}

func (Nop) MembershipTransition(_, _ string) {}

func (Nop) InviteRedemption(string) {}

func (Nop) ContentCreated(string) {}

func (Nop) CounterDrift(string, int64) {}

func (Nop) InvitesSwept(int64) {}
