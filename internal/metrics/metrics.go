package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики движка синхронизации.
type Metrics struct {
	BarsApplied      prometheus.Counter
	BarsRejected     prometheus.Counter // stale по monotonic-guard, ожидаемо и часто
	TradesApplied    prometheus.Counter
	TradesDeduped    prometheus.Counter
	TradesFiltered   prometheus.Counter // раньше firstBarTime
	PlotcharsApplied prometheus.Counter
	PlotPointsRouted prometheus.Counter
	PlotUnknownTitle prometheus.Counter
	OpenFixes        prometheus.Counter
	MarkerRewrites   prometheus.Counter

	Reconnects      prometheus.Counter
	SnapshotRetries prometheus.Counter
	SnapshotLoads   prometheus.Counter
	DecodeFailures  prometheus.Counter

	JankReloads prometheus.Counter
	FrameMean   prometheus.Gauge // текущее среднее межкадровой дельты, сек
}

func New() *Metrics {
	m := &Metrics{
		BarsApplied:      counter("chart_bars_applied_total", "Bars merged into the primary series."),
		BarsRejected:     counter("chart_bars_rejected_total", "Bars dropped by the monotonic time guard."),
		TradesApplied:    counter("chart_trades_applied_total", "Trade markers accepted."),
		TradesDeduped:    counter("chart_trades_deduped_total", "Trade events dropped as duplicates."),
		TradesFiltered:   counter("chart_trades_filtered_total", "Trade events older than firstBarTime."),
		PlotcharsApplied: counter("chart_plotchars_applied_total", "Plotchar markers accepted."),
		PlotPointsRouted: counter("chart_plot_points_routed_total", "Plot points routed to a known series."),
		PlotUnknownTitle: counter("chart_plot_unknown_title_total", "Plot points for series never created at bootstrap."),
		OpenFixes:        counter("chart_open_fixes_total", "last_bar_open_fix events recorded."),
		MarkerRewrites:   counter("chart_marker_rewrites_total", "Marker prices rewritten retroactively."),
		Reconnects:       counter("chart_ws_reconnects_total", "Websocket reconnect attempts."),
		SnapshotRetries:  counter("chart_snapshot_retries_total", "Bulk endpoint retry attempts."),
		SnapshotLoads:    counter("chart_snapshot_loads_total", "Completed snapshot bootstraps."),
		DecodeFailures:   counter("chart_decode_failures_total", "Stream frames dropped by the strict decoder."),
		JankReloads:      counter("chart_jank_reloads_total", "Forced reloads triggered by the render health monitor."),
		FrameMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chart_frame_mean_seconds",
			Help: "Mean inter-frame delta over the rolling window.",
		}),
	}
	prometheus.MustRegister(
		m.BarsApplied, m.BarsRejected,
		m.TradesApplied, m.TradesDeduped, m.TradesFiltered,
		m.PlotcharsApplied, m.PlotPointsRouted, m.PlotUnknownTitle,
		m.OpenFixes, m.MarkerRewrites,
		m.Reconnects, m.SnapshotRetries, m.SnapshotLoads, m.DecodeFailures,
		m.JankReloads, m.FrameMean,
	)
	return m
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}
