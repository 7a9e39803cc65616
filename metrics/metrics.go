// Package metrics exports session and notification feed counters to
// prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/notification"
)

// Collector implements auth.SessionMetrics and notification.FeedMetrics
type Collector struct {
	transitions     *prometheus.CounterVec
	signInFailures  *prometheus.CounterVec
	orphaned        prometheus.Counter
	feedSnapshots   prometheus.Counter
	feedItems       prometheus.Gauge
	feedUnread      prometheus.Gauge
	feedSubErrors   prometheus.Counter
	feedMarkFailure prometheus.Counter
}

var (
	_ auth.SessionMetrics      = (*Collector)(nil)
	_ notification.FeedMetrics = (*Collector)(nil)
)

// NewCollector creates the collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "care_session_transitions_total",
			Help: "Session status changes by from and to status",
		}, []string{"from", "to"}),
		signInFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "care_signin_failures_total",
			Help: "Failed sign in attempts by credential error kind",
		}, []string{"kind"}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "care_session_orphaned_total",
			Help: "Sessions dropped because no profile exists",
		}),
		feedSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "care_notification_snapshots_total",
			Help: "Notification snapshots applied to the feed",
		}),
		feedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "care_notification_items",
			Help: "Notifications in the last applied snapshot",
		}),
		feedUnread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "care_notification_unread",
			Help: "Unread notifications in the last applied snapshot",
		}),
		feedSubErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "care_notification_subscription_errors_total",
			Help: "Live query failures",
		}),
		feedMarkFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "care_notification_mark_read_failures_total",
			Help: "Failed mark as read requests",
		}),
	}

	reg.MustRegister(
		c.transitions,
		c.signInFailures,
		c.orphaned,
		c.feedSnapshots,
		c.feedItems,
		c.feedUnread,
		c.feedSubErrors,
		c.feedMarkFailure,
	)

	return c
}

func (c *Collector) SessionTransition(from, to auth.SessionStatus) {
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) SignInFailed(kind auth.CredentialErrorKind) {
	c.signInFailures.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) OrphanedSession() {
	c.orphaned.Inc()
}

func (c *Collector) FeedSnapshot(items, unread int) {
	c.feedSnapshots.Inc()
	c.feedItems.Set(float64(items))
	c.feedUnread.Set(float64(unread))
}

func (c *Collector) FeedSubscriptionError() {
	c.feedSubErrors.Inc()
}

func (c *Collector) FeedMarkReadFailed() {
	c.feedMarkFailure.Inc()
}

// Handler serves the gatherer for prometheus scrapes
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
