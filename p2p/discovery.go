package p2p

import (
	"context"
	"fmt"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/discovery"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
)

// dhtDiscovery wraps a kademlia DHT and the routing discovery built on it.
type dhtDiscovery struct {
	dht  *dht.IpfsDHT
	disc *routing.RoutingDiscovery
	host host.Host
	log  *logx.Logger
}

func newDHTDiscovery(ctx context.Context, h host.Host, log *logx.Logger) (*dhtDiscovery, error) {
	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeServer))
	if err != nil {
		return nil, fmt.Errorf("failed to create dht: %w", err)
	}
	if err := kad.Bootstrap(ctx); err != nil {
		_ = kad.Close()
		return nil, fmt.Errorf("failed to bootstrap dht: %w", err)
	}
	return &dhtDiscovery{
		dht:  kad,
		disc: routing.NewRoutingDiscovery(kad),
		host: h,
		log:  log,
	}, nil
}

// Raw returns the discovery used by gossipsub to find topic peers.
func (d *dhtDiscovery) Raw() discovery.Discovery {
	return d.disc
}

// Run advertises the node and connects to discovered peers until ctx is done.
func (d *dhtDiscovery) Run(ctx context.Context, maxPeers int) {
	if maxPeers <= 0 {
		maxPeers = defaultMaxPeers
	}
	dutil.Advertise(ctx, d.disc, AdvertiseName)

	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		d.findPeers(ctx, maxPeers)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *dhtDiscovery) findPeers(ctx context.Context, maxPeers int) {
	peerChan, err := d.disc.FindPeers(ctx, AdvertiseName, discovery.Limit(maxPeers))
	if err != nil {
		d.log.Error("DISCOVERY", "failed to find peers: ", err)
		return
	}
	for p := range peerChan {
		if p.ID == d.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		if len(d.host.Network().Peers()) >= maxPeers {
			break
		}
		if err := d.host.Connect(ctx, p); err != nil {
			d.log.Debug("DISCOVERY", "failed to connect to discovered peer ", p.ID.String(), ": ", err)
			continue
		}
		d.log.Info("DISCOVERY", "connected to discovered peer: ", p.ID.String())
	}
	monitoring.SetPeerCount(len(d.host.Network().Peers()))
}

func (d *dhtDiscovery) Close() error {
	return d.dht.Close()
}
