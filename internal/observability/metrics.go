package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MentionsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodbuzz_mentions_read_total",
		Help: "Raw mentions decoded from the JSONL input",
	})

	MentionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbuzz_mentions_dropped_total",
		Help: "Raw mentions not clustered",
	}, []string{"reason"}) // malformed, unnamed

	ClustersFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodbuzz_clusters_formed_total",
		Help: "Clusters produced by deduplication",
	})

	EntitiesWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodbuzz_entities",
		Help: "Rows in the latest canonical entity table",
	})

	SnapshotsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodbuzz_snapshots_written_total",
		Help: "Weekly snapshots saved",
	})

	MoversComputed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodbuzz_movers",
		Help: "Rows in the latest movers table",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbuzz_runs_total",
		Help: "Pipeline commands executed",
	}, []string{"command", "status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodbuzz_run_duration_seconds",
		Help:    "Duration of pipeline commands",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"command"})

	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbuzz_alerts_sent_total",
		Help: "Mover notifications delivered per channel",
	}, []string{"channel", "status"})
)
