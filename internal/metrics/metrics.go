package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor counters exported at /metrics.
type Metrics struct {
	// Frame loop
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesRaw       atomic.Uint64
	ReadErrors      atomic.Uint64
	DetectionErrors atomic.Uint64
	ProcessLatency  atomic.Uint64 // ms, last frame

	// Alerts
	AlertsEmitted   atomic.Uint64
	AlertsThrottled atomic.Uint64
	AlertErrors     atomic.Uint64
	PublishErrors   atomic.Uint64

	// Recording
	RecordingActive    atomic.Uint64
	RecordingsFinished atomic.Uint64
	UploadErrors       atomic.Uint64

	// Stream
	ActiveViewers atomic.Int64
	SessionActive atomic.Uint64

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.register()

	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name, help string
		value      func() float64
	}{
		{"ppe_frames_read_total", "Frames read from the camera", loadU(&m.FramesRead)},
		{"ppe_frames_processed_total", "Frames annotated and encoded", loadU(&m.FramesProcessed)},
		{"ppe_frames_raw_total", "Frames delivered without annotation", loadU(&m.FramesRaw)},
		{"ppe_read_errors_total", "Camera read failures", loadU(&m.ReadErrors)},
		{"ppe_detection_errors_total", "Detection model failures", loadU(&m.DetectionErrors)},
		{"ppe_process_latency_ms", "Processing time of the last frame", loadU(&m.ProcessLatency)},
		{"ppe_alerts_emitted_total", "Alerts persisted", loadU(&m.AlertsEmitted)},
		{"ppe_alerts_throttled_total", "Alert-worthy outcomes dropped by the throttle", loadU(&m.AlertsThrottled)},
		{"ppe_alert_errors_total", "Alert persistence failures", loadU(&m.AlertErrors)},
		{"ppe_alert_publish_errors_total", "Alert event publish failures", loadU(&m.PublishErrors)},
		{"ppe_recording_active", "Recording active (0=idle, 1=recording)", loadU(&m.RecordingActive)},
		{"ppe_recordings_finished_total", "Recordings finalized", loadU(&m.RecordingsFinished)},
		{"ppe_upload_errors_total", "Recording upload failures", loadU(&m.UploadErrors)},
		{"ppe_stream_viewers", "Connected stream viewers", func() float64 { return float64(m.ActiveViewers.Load()) }},
		{"ppe_session_active", "Camera session running (0/1)", loadU(&m.SessionActive)},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.value,
		))
	}
}

func loadU(v *atomic.Uint64) func() float64 {
	return func() float64 { return float64(v.Load()) }
}

func (m *Metrics) ObserveProcess(d time.Duration) {
	m.ProcessLatency.Store(uint64(d.Milliseconds()))
}

func SetFlag(v *atomic.Uint64, on bool) {
	if on {
		v.Store(1)
		return
	}
	v.Store(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
