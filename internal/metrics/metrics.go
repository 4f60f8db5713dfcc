package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "retail_loader"

// Recorder wraps the loader and inventory collectors. A nil *Recorder is a
// valid no-op so callers never branch on whether metrics are enabled.
type Recorder struct {
	rows          *prometheus.CounterVec
	events        *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Source rows processed by the loader, by entity and result.",
		}, []string{"entity", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_events_total",
			Help:      "Inventory events applied, by event type and result.",
		}, []string{"event", "result"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inventory_event_duration_seconds",
			Help:      "Time spent applying one inventory event, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(r.rows, r.events, r.eventDuration)
	}
	return r
}

// Row results.
const (
	ResultInserted  = "inserted"
	ResultExisting  = "existing"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
	ResultOK        = "ok"
)

func (r *Recorder) Row(entity, result string) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(entity, result).Inc()
}

// Event records one inventory event and how long it took since start.
func (r *Recorder) Event(event string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	r.events.WithLabelValues(event, result).Inc()
	r.eventDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
}
