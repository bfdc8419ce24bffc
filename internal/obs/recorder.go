package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"esvc/internal/ehash"
)

// Metrics are the Prometheus collectors the Recorder updates. MustRegister
// registers them all against reg; callers typically pass
// prometheus.DefaultRegisterer or a test-local registry.
type Metrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	ProbesRun     prometheus.Counter
	ProbesIndep   prometheus.Counter
	EventsShelved prometheus.Counter
	MergesOK      prometheus.Counter
	MergesFailed  prometheus.Counter
}

// NewMetrics constructs the collector set with a fixed namespace.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "workcache", Name: "cache_hits_total",
			Help: "Closed-set cache lookups that found an existing entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "workcache", Name: "cache_misses_total",
			Help: "Closed-set cache lookups that required an executor call.",
		}),
		ProbesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "shelve", Name: "probes_total",
			Help: "Candidate commutativity probes performed.",
		}),
		ProbesIndep: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "shelve", Name: "probes_independent_total",
			Help: "Candidate probes that concluded independence.",
		}),
		EventsShelved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "shelve", Name: "events_shelved_total",
			Help: "Events successfully inserted by ShelveEvent.",
		}),
		MergesOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "merge", Name: "accepted_total",
			Help: "Foreign events accepted by TryMerge.",
		}),
		MergesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvc", Subsystem: "merge", Name: "rejected_total",
			Help: "Foreign events rejected by TryMerge.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration (mirrors prometheus.MustRegister's own
// contract; callers that need to tolerate re-registration should use a
// fresh prometheus.NewRegistry() in tests instead of the default one).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.ProbesRun, m.ProbesIndep,
		m.EventsShelved, m.MergesOK, m.MergesFailed)
}

// Recorder implements workcache.Recorder: every decision is logged
// through logrus, counted in Prometheus, and appended to an in-memory
// Trace for later canonical dumping (cmd/esvcbench dumps it). Safe for concurrent use; recording never panics,
// mirroring internal/trace.SafeRecord's inertness guarantee.
type Recorder struct {
	log     *logrus.Logger
	metrics *Metrics

	mu    sync.Mutex
	trace Trace
}

// NewRecorder builds a Recorder. Either argument may be nil (metrics
// nil disables counting; log nil disables logging); the trace is always
// collected.
func NewRecorder(log *logrus.Logger, metrics *Metrics, runLabel string) *Recorder {
	return &Recorder{log: log, metrics: metrics, trace: Trace{RunLabel: runLabel}}
}

func (r *Recorder) append(e ProbeEvent) {
	defer func() { _ = recover() }()
	r.mu.Lock()
	r.trace.Events = append(r.trace.Events, e)
	r.mu.Unlock()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	if hit {
		if r.metrics != nil {
			r.metrics.CacheHits.Inc()
		}
		r.append(ProbeEvent{Kind: KindCacheHit})
		return
	}
	if r.metrics != nil {
		r.metrics.CacheMisses.Inc()
	}
	r.append(ProbeEvent{Kind: KindCacheMiss})
}

func (r *Recorder) RecordProbe(candidate ehash.Hash, independent bool) {
	if r.metrics != nil {
		r.metrics.ProbesRun.Inc()
	}
	kind := KindProbeDependent
	if independent {
		kind = KindProbeIndependent
		if r.metrics != nil {
			r.metrics.ProbesIndep.Inc()
		}
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{"candidate": candidate.String(), "independent": independent}).Debug("shelve: probed candidate")
	}
	r.append(ProbeEvent{Kind: kind, Hash: candidate.String()})
}

func (r *Recorder) RecordShelved(h *ehash.Hash, hardDeps, softDeps int) {
	if r.metrics != nil {
		r.metrics.EventsShelved.Inc()
	}
	hs := ""
	if h != nil {
		hs = h.String()
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{"hash": hs, "hardDeps": hardDeps, "softDeps": softDeps}).Info("shelve: event inserted")
	}
	r.append(ProbeEvent{Kind: KindEventShelved, Hash: hs, HardDeps: hardDeps, SoftDeps: softDeps})
}

func (r *Recorder) RecordMergeOutcome(h ehash.Hash, err error) {
	if err == nil {
		if r.metrics != nil {
			r.metrics.MergesOK.Inc()
		}
		if r.log != nil {
			r.log.WithField("hash", h.String()).Info("merge: accepted")
		}
		r.append(ProbeEvent{Kind: KindMergeAccepted, Hash: h.String()})
		return
	}
	if r.metrics != nil {
		r.metrics.MergesFailed.Inc()
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{"hash": h.String(), "error": err.Error()}).Warn("merge: rejected")
	}
	r.append(ProbeEvent{Kind: KindMergeRejected, Hash: h.String(), Reason: err.Error()})
}

// Trace returns a point-in-time canonicalized copy of the collected trace.
func (r *Recorder) Trace() Trace {
	r.mu.Lock()
	cp := Trace{RunLabel: r.trace.RunLabel, Events: append([]ProbeEvent(nil), r.trace.Events...)}
	r.mu.Unlock()
	cp.Canonicalize()
	return cp
}
