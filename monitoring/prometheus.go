package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TxOrigin tells whether a submission came from a local client or a peer.
type TxOrigin string

const (
	OriginLocal   TxOrigin = "local"
	OriginRelayed TxOrigin = "relayed"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	mempoolSize       prometheus.Gauge
	ingressTxCount    *prometheus.CounterVec
	admittedTxCount   *prometheus.CounterVec
	rejectedTxCount   *prometheus.CounterVec
	syncRequestCount  *prometheus.CounterVec
	broadcastCount    *prometheus.CounterVec
	snapshotBytes     prometheus.Counter
	peerCount         prometheus.Gauge
	panicCount        prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncgate_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node start",
			},
		),
		mempoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncgate_node_txpool_size",
				Help: "The total pending transactions held in the txpool",
			},
		),
		ingressTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_node_ingress_tx_count",
				Help: "The total number of submitted transactions",
			},
			[]string{"origin"},
		),
		admittedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_node_admitted_tx_count",
				Help: "The total number of transactions inserted into the txpool",
			},
			[]string{"origin"},
		),
		rejectedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_node_rejected_tx_count",
				Help: "The total number of rejected transactions",
			},
			[]string{"reason"},
		),
		syncRequestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_node_sync_request_count",
				Help: "The total number of routed messages by type",
			},
			[]string{"type"},
		),
		broadcastCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncgate_node_broadcast_count",
				Help: "The total number of broadcast envelopes by type and result",
			},
			[]string{"type", "result"},
		),
		snapshotBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "syncgate_node_snapshot_bytes_served",
				Help: "The total number of snapshot body bytes served to peers",
			},
		),
		peerCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncgate_node_peer_count",
				Help: "The total number of peer connections",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "syncgate_node_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var nodeMetrics = newNodePromMetrics()

// InitMetrics stamps the node start time.
func InitMetrics() {
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func SetMempoolSize(size int) {
	nodeMetrics.mempoolSize.Set(float64(size))
}

func IncreaseIngressTxCount(origin TxOrigin) {
	nodeMetrics.ingressTxCount.With(prometheus.Labels{"origin": string(origin)}).Inc()
}

func IncreaseAdmittedTxCount(origin TxOrigin) {
	nodeMetrics.admittedTxCount.With(prometheus.Labels{"origin": string(origin)}).Inc()
}

func RecordRejectedTx(reason string) {
	nodeMetrics.rejectedTxCount.With(prometheus.Labels{"reason": reason}).Inc()
}

func IncreaseSyncRequestCount(msgType string) {
	nodeMetrics.syncRequestCount.With(prometheus.Labels{"type": msgType}).Inc()
}

func RecordBroadcast(msgType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	nodeMetrics.broadcastCount.With(prometheus.Labels{"type": msgType, "result": result}).Inc()
}

func AddSnapshotBytesServed(n int) {
	nodeMetrics.snapshotBytes.Add(float64(n))
}

func SetPeerCount(peers int) {
	nodeMetrics.peerCount.Set(float64(peers))
}

func IncreasePanicCount() {
	nodeMetrics.panicCount.Inc()
}
