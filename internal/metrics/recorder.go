package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

type NotificationResult string

const (
	NotificationAccepted NotificationResult = "accepted"
	NotificationDropped  NotificationResult = "dropped"
	NotificationFiltered NotificationResult = "filtered"
)

type AssetResult string

const (
	AssetPresent     AssetResult = "present"
	AssetAbsent      AssetResult = "absent"
	AssetUnavailable AssetResult = "unavailable"
	AssetStale       AssetResult = "stale"
)

// Recorder receives the operational counters of the watch face
type Recorder interface {
	IncNotification(result NotificationResult)
	IncAssetResult(result AssetResult)
	IncReconnectAttempt()
	SetConnectionState(state string)
	IncRenderTick()
	IncSchedulerResync()
}

type NoopRecorder struct{}

func (NoopRecorder) IncNotification(NotificationResult) {}
func (NoopRecorder) IncAssetResult(AssetResult)         {}
func (NoopRecorder) IncReconnectAttempt()               {}
func (NoopRecorder) SetConnectionState(string)          {}
func (NoopRecorder) IncRenderTick()                     {}
func (NoopRecorder) IncSchedulerResync()                {}

var connectionStates = []string{"disconnected", "connecting", "subscribed"}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	notifications     *prom.CounterVec
	assetResults      *prom.CounterVec
	reconnectAttempts prom.Counter
	connectionState   *prom.GaugeVec
	renderTicks       prom.Counter
	schedulerResyncs  prom.Counter
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.notifications = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sunshinewear",
		Name:      "sync_notifications_total",
		Help:      "Change notifications received from the peer by outcome",
	}, []string{"result"})
	pr.assetResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sunshinewear",
		Name:      "sync_asset_results_total",
		Help:      "Icon resolutions by outcome",
	}, []string{"result"})
	pr.reconnectAttempts = prom.NewCounter(prom.CounterOpts{
		Namespace: "sunshinewear",
		Name:      "sync_reconnect_attempts_total",
		Help:      "Failed connection attempts to the peer",
	})
	pr.connectionState = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "sunshinewear",
		Name:      "sync_connection_state",
		Help:      "1 for the current connection state of the data sync channel",
	}, []string{"state"})
	pr.renderTicks = prom.NewCounter(prom.CounterOpts{
		Namespace: "sunshinewear",
		Name:      "render_ticks_total",
		Help:      "Redraws driven by the interactive scheduler",
	})
	pr.schedulerResyncs = prom.NewCounter(prom.CounterOpts{
		Namespace: "sunshinewear",
		Name:      "scheduler_resyncs_total",
		Help:      "Ticks fired more than one period late",
	})
	reg.MustRegister(pr.notifications, pr.assetResults, pr.reconnectAttempts, pr.connectionState, pr.renderTicks, pr.schedulerResyncs)
	return pr
}

func (p *PrometheusRecorder) IncNotification(result NotificationResult) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncAssetResult(result AssetResult) {
	if p == nil || p.assetResults == nil {
		return
	}
	p.assetResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncReconnectAttempt() {
	if p == nil || p.reconnectAttempts == nil {
		return
	}
	p.reconnectAttempts.Inc()
}

func (p *PrometheusRecorder) SetConnectionState(state string) {
	if p == nil || p.connectionState == nil {
		return
	}
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		p.connectionState.WithLabelValues(s).Set(value)
	}
}

func (p *PrometheusRecorder) IncRenderTick() {
	if p == nil || p.renderTicks == nil {
		return
	}
	p.renderTicks.Inc()
}

func (p *PrometheusRecorder) IncSchedulerResync() {
	if p == nil || p.schedulerResyncs == nil {
		return
	}
	p.schedulerResyncs.Inc()
}
