package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PosMetrics exposes the epoched PoS core's operational counters and gauges:
// epoch-transition progress, minted inflation, slash activity, and the
// current size of each validator set.
type PosMetrics struct {
	currentEpoch     prometheus.Gauge
	epochDuration    prometheus.Histogram
	inflationMinted  *prometheus.GaugeVec
	totalStaked      prometheus.Gauge
	totalSupply      prometheus.Gauge
	slashesProcessed *prometheus.CounterVec
	slashRate        *prometheus.GaugeVec
	setSize          *prometheus.GaugeVec
	evidenceIngested *prometheus.CounterVec
}

var (
	posOnce     sync.Once
	posRegistry *PosMetrics
)

// Pos returns the process-wide PoS metrics registry, registering it with the
// default Prometheus registerer on first use.
func Pos() *PosMetrics {
	posOnce.Do(func() {
		posRegistry = &PosMetrics{
			currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pos_current_epoch",
				Help: "The epoch the PoS engine currently considers active.",
			}),
			epochDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "pos_epoch_transition_seconds",
				Help:    "Wall-clock time spent inside a single AdvanceEpoch call.",
				Buckets: prometheus.DefBuckets,
			}),
			inflationMinted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pos_inflation_minted",
				Help: "Tokens minted by the inflation controller for the given epoch.",
			}, []string{"epoch"}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pos_total_staked",
				Help: "Current escrow balance: every token bonded anywhere.",
			}),
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pos_total_supply",
				Help: "Current engine-tracked circulating supply.",
			}),
			slashesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pos_slashes_processed_total",
				Help: "Count of slash evidence entries processed by infraction type.",
			}, []string{"type"}),
			slashRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pos_slash_rate",
				Help: "Most recently applied cubic slash rate by validator and infraction type.",
			}, []string{"validator", "type"}),
			setSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pos_validator_set_size",
				Help: "Validator count per set (consensus, below_capacity, below_threshold).",
			}, []string{"set"}),
			evidenceIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pos_evidence_ingested_total",
				Help: "Count of slash evidence submissions accepted by infraction type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			posRegistry.currentEpoch,
			posRegistry.epochDuration,
			posRegistry.inflationMinted,
			posRegistry.totalStaked,
			posRegistry.totalSupply,
			posRegistry.slashesProcessed,
			posRegistry.slashRate,
			posRegistry.setSize,
			posRegistry.evidenceIngested,
		)
	})
	return posRegistry
}

func (m *PosMetrics) SetCurrentEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.currentEpoch.Set(float64(epoch))
}

func (m *PosMetrics) ObserveEpochTransition(seconds float64) {
	if m == nil {
		return
	}
	m.epochDuration.Observe(seconds)
}

func (m *PosMetrics) SetInflationMinted(epoch uint64, amount float64) {
	if m == nil {
		return
	}
	m.inflationMinted.WithLabelValues(fmt.Sprintf("%d", epoch)).Set(amount)
}

func (m *PosMetrics) SetTotalStaked(amount float64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(amount)
}

func (m *PosMetrics) SetTotalSupply(amount float64) {
	if m == nil {
		return
	}
	m.totalSupply.Set(amount)
}

func (m *PosMetrics) IncSlashProcessed(infractionType string) {
	if m == nil {
		return
	}
	if infractionType == "" {
		infractionType = "unknown"
	}
	m.slashesProcessed.WithLabelValues(infractionType).Inc()
}

func (m *PosMetrics) SetSlashRate(validator, infractionType string, rate float64) {
	if m == nil {
		return
	}
	if infractionType == "" {
		infractionType = "unknown"
	}
	m.slashRate.WithLabelValues(validator, infractionType).Set(rate)
}

func (m *PosMetrics) SetSetSize(set string, count float64) {
	if m == nil {
		return
	}
	m.setSize.WithLabelValues(set).Set(count)
}

func (m *PosMetrics) IncEvidenceIngested(infractionType string) {
	if m == nil {
		return
	}
	if infractionType == "" {
		infractionType = "unknown"
	}
	m.evidenceIngested.WithLabelValues(infractionType).Inc()
}
