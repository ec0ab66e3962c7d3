package p2p

import "time"

const (
	// SyncProtocol carries line-delimited JSON-RPC between a syncing peer and
	// the node serving it.
	SyncProtocol = "/syncgate/sync/1.0.0"

	DefaultTopic   = "syncgate/post_tx/1.0.0"
	MaxMessageSize = 1 << 20

	// AdvertiseName is the rendezvous string nodes advertise in the DHT.
	AdvertiseName = "syncgate"

	dedupAdvanceInterval = 3 * time.Second
	peerCountInterval    = 10 * time.Second
	discoveryInterval    = 30 * time.Second
	defaultMaxPeers      = 50
)
