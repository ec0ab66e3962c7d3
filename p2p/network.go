package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mezonai/syncgate/config"
	"github.com/mezonai/syncgate/exception"
	"github.com/mezonai/syncgate/jsonrpc"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
	ma "github.com/multiformats/go-multiaddr"
)

// Network is the node's libp2p presence: one gossipsub topic for post_tx
// envelopes and a stream protocol serving sync requests.
type Network struct {
	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	disc   *dhtDiscovery
	log    *logx.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNetwork(cfg config.P2PConfig, priv crypto.PrivKey, log *logx.Logger) (*Network, error) {
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(cfg.ListenAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts := []pubsub.Option{
		pubsub.WithMaxMessageSize(MaxMessageSize),
		pubsub.WithValidateQueueSize(128),
		pubsub.WithPeerOutboundQueueSize(128),
	}
	var disc *dhtDiscovery
	if cfg.DHT {
		disc, err = newDHTDiscovery(ctx, h, log)
		if err != nil {
			cancel()
			h.Close()
			return nil, err
		}
		opts = append(opts, pubsub.WithDiscovery(disc.Raw()))
	}
	ps, err := pubsub.NewGossipSub(ctx, h, opts...)
	if err != nil {
		if disc != nil {
			_ = disc.Close()
		}
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	topicName := cfg.Topic
	if topicName == "" {
		topicName = DefaultTopic
	}
	topic, err := ps.Join(topicName)
	if err != nil {
		if disc != nil {
			_ = disc.Close()
		}
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}

	n := &Network{host: h, pubsub: ps, topic: topic, disc: disc, log: log, ctx: ctx, cancel: cancel}
	n.log.Info("NETWORK", "libp2p network started with ID: ", h.ID().String())
	for _, addr := range n.Addrs() {
		n.log.Info("NETWORK", "listening on: ", addr)
	}

	n.connectBootstrap(cfg.BootstrapPeers)
	n.wg.Add(1)
	exception.SafeGo("PeerCount", func() {
		defer n.wg.Done()
		n.reportPeers()
	})
	if disc != nil {
		n.wg.Add(1)
		exception.SafeGo("Discovery", func() {
			defer n.wg.Done()
			disc.Run(ctx, cfg.MaxPeers)
		})
	}
	return n, nil
}

func (n *Network) connectBootstrap(peers []string) {
	for _, addr := range peers {
		if addr == "" {
			continue
		}
		if err := n.Connect(n.ctx, addr); err != nil {
			n.log.Error("NETWORK:SETUP", "failed to connect to bootstrap ", addr, ": ", err)
			continue
		}
		n.log.Info("NETWORK:SETUP", "connected to bootstrap peer: ", addr)
	}
}

// Connect dials a peer given as a multiaddr ending in /p2p/<id>.
func (n *Network) Connect(ctx context.Context, addr string) error {
	info, err := ParseAddrInfo(addr)
	if err != nil {
		return err
	}
	return n.host.Connect(ctx, *info)
}

func ParseAddrInfo(addr string) (*peer.AddrInfo, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid multiaddr %q: %w", addr, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return nil, fmt.Errorf("multiaddr %q has no peer id: %w", addr, err)
	}
	return info, nil
}

func (n *Network) ID() peer.ID {
	return n.host.ID()
}

// Addrs lists the dialable addresses of this node including its peer id.
func (n *Network) Addrs() []string {
	out := make([]string, 0, len(n.host.Addrs()))
	for _, addr := range n.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr.String(), n.host.ID().String()))
	}
	return out
}

func (n *Network) PeerCount() int {
	return len(n.host.Network().Peers())
}

func (n *Network) reportPeers() {
	ticker := time.NewTicker(peerCountInterval)
	defer ticker.Stop()
	for {
		monitoring.SetPeerCount(n.PeerCount())
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Broadcast publishes a {type, data} envelope on the topic. It returns once
// the message is handed to gossipsub.
func (n *Network) Broadcast(ctx context.Context, msgType string, payload any) error {
	data, err := jsonx.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env, err := jsonx.Marshal(jsonrpc.Envelope{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := n.topic.Publish(ctx, env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msgType, err)
	}
	return nil
}

// StartRelay subscribes to the topic and hands every message from another
// peer to relay until Close.
func (n *Network) StartRelay(relay *Relay) error {
	sub, err := n.topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.wg.Add(2)
	exception.SafeGo("HandleTopic", func() {
		defer n.wg.Done()
		defer sub.Cancel()
		for {
			msg, err := sub.Next(n.ctx)
			if err != nil {
				if n.ctx.Err() != nil {
					return
				}
				n.log.Error("PUBSUB", "subscription error: ", err)
				continue
			}
			if msg.ReceivedFrom == n.host.ID() {
				continue
			}
			if _, err := relay.HandleMessage(n.ctx, msg.ReceivedFrom, msg.Data); err != nil {
				n.log.Warn("PUBSUB", "relay message from ", msg.ReceivedFrom.String(), ": ", err)
			}
		}
	})
	exception.SafeGo("DedupWindow", func() {
		defer n.wg.Done()
		ticker := time.NewTicker(dedupAdvanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
				relay.dedup.Advance()
			}
		}
	})
	return nil
}

// ServeSync answers sync requests from peers with methods, one JSON-RPC
// server per stream.
func (n *Network) ServeSync(methods handler.Map) {
	n.host.SetStreamHandler(SyncProtocol, func(s network.Stream) {
		remote := s.Conn().RemotePeer()
		n.log.Debug("SYNC", "sync stream from ", remote.String())
		srv := jrpc2.NewServer(methods, nil).Start(channel.Line(s, s))
		if err := srv.Wait(); err != nil {
			n.log.Debug("SYNC", "sync stream from ", remote.String(), " closed: ", err)
		}
	})
}

// SyncClient opens a sync stream to id. Closing the client closes the stream.
func (n *Network) SyncClient(ctx context.Context, id peer.ID) (*jrpc2.Client, error) {
	s, err := n.host.NewStream(ctx, id, SyncProtocol)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync stream to %s: %w", id, err)
	}
	return jrpc2.NewClient(channel.Line(s, s), nil), nil
}

func (n *Network) Close() error {
	n.cancel()
	n.host.RemoveStreamHandler(SyncProtocol)
	if n.disc != nil {
		if err := n.disc.Close(); err != nil {
			n.log.Error("DISCOVERY", "failed to close dht: ", err)
		}
	}
	err := n.host.Close()
	n.wg.Wait()
	return err
}
