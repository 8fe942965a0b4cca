package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics covers the conversation turn: outcomes, provider attempts,
// CRM writes, dedup discards and handoff silences.
type EngineMetrics struct {
	turnsTotal    *prometheus.CounterVec
	turnLatency   prometheus.Histogram
	llmAttempts   *prometheus.CounterVec
	crmWrites     *prometheus.CounterVec
	dedupDiscards *prometheus.CounterVec
	silences      *prometheus.CounterVec
	leadsEmitted  *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Processed inbound turns by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Wall time of one conversation turn",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),
		llmAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "LLM provider attempts by outcome",
		}, []string{"provider", "outcome"}),
		crmWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crm",
			Name:      "writes_total",
			Help:      "CRM upserts by result",
		}, []string{"result"}),
		dedupDiscards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handoff",
			Name:      "dedup_discards_total",
			Help:      "Events discarded as duplicates",
		}, []string{"kind"}),
		silences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handoff",
			Name:      "silences_total",
			Help:      "Conversations handed to a human",
		}, []string{"reason"}),
		leadsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leads",
			Name:      "emitted_total",
			Help:      "Leads emitted by stage",
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.llmAttempts, m.crmWrites, m.dedupDiscards, m.silences, m.leadsEmitted)
	return m
}

func (m *EngineMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.Observe(seconds)
}

// ObserveLLMAttempt matches llm.AttemptObserver.
func (m *EngineMetrics) ObserveLLMAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.llmAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *EngineMetrics) ObserveCRMWrite(result string) {
	if m == nil {
		return
	}
	m.crmWrites.WithLabelValues(result).Inc()
}

func (m *EngineMetrics) ObserveDedupDiscard(kind string) {
	if m == nil {
		return
	}
	m.dedupDiscards.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveSilence(reason string) {
	if m == nil {
		return
	}
	m.silences.WithLabelValues(reason).Inc()
}

func (m *EngineMetrics) ObserveLead(stage string) {
	if m == nil {
		return
	}
	m.leadsEmitted.WithLabelValues(stage).Inc()
}
