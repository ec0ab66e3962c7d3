package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/syncgate/config"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/p2p"
	"github.com/mezonai/syncgate/snapshot"
	"github.com/mezonai/syncgate/store"
	"github.com/spf13/cobra"
)

var (
	snapshotHeight    uint64
	snapshotPeer      string
	snapshotChunkSize uint64
	snapshotOut       string
	snapshotApply     bool
	snapshotTimeout   time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write or fetch balance snapshots",
}

var writeSnapshotCmd = &cobra.Command{
	Use:   "write",
	Short: "Publish a snapshot of the local balance set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stores, err := store.CreateStores(cfg.Storage, cfg.Sync)
		if err != nil {
			return err
		}
		defer stores.Close()

		meta, err := snapshot.NewWriter(stores, nil, logx.Default()).Write(snapshotHeight)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s height=%d size=%d\n", meta.Hash, meta.Height, meta.SizeBytes)
		return nil
	},
}

var fetchSnapshotCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Reconstruct a peer's snapshot and verify its hash",
	Long: `Fetch the latest snapshot at or below --height from a peer. The peer is
either a node base URL (JSON-RPC over HTTP) or a libp2p multiaddr ending in
/p2p/<peer-id>.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		caller, closeCaller, err := dialSyncPeer(ctx, snapshotPeer)
		if err != nil {
			return err
		}
		defer closeCaller()

		chunkSize := snapshotChunkSize
		if !cmd.Flags().Changed("chunk-size") {
			if syncCfg, err := config.LoadSyncConfig(configPath); err == nil {
				chunkSize = uint64(syncCfg.DefaultChunkSize)
			}
		}

		info, body, err := snapshot.NewFetcher(caller, chunkSize, logx.Default()).Fetch(ctx, snapshotHeight)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s verified (%d bytes)\n", info.Hash, info.SizeBytes)

		if snapshotOut != "" {
			if err := os.WriteFile(snapshotOut, body, 0644); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
		if !snapshotApply {
			return nil
		}

		file, err := snapshot.Decode(body)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		stores, err := store.CreateStores(cfg.Storage, cfg.Sync)
		if err != nil {
			return err
		}
		defer stores.Close()
		if err := snapshot.Apply(file, stores); err != nil {
			return err
		}
		if _, err := snapshot.NewWriter(stores, nil, logx.Default()).Publish(file.Height, body); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d accounts at height %d\n", len(file.Accounts), file.Height)
		return nil
	},
}

// dialSyncPeer connects to a peer over HTTP or a libp2p sync stream.
func dialSyncPeer(ctx context.Context, peerAddr string) (snapshot.Caller, func(), error) {
	if peerAddr == "" {
		return nil, nil, fmt.Errorf("--peer is required")
	}
	if strings.HasPrefix(peerAddr, "http://") || strings.HasPrefix(peerAddr, "https://") {
		ch := jhttp.NewChannel(strings.TrimRight(peerAddr, "/")+"/rpc", nil)
		cli := jrpc2.NewClient(ch, nil)
		return cli, func() { cli.Close() }, nil
	}

	info, err := p2p.ParseAddrInfo(peerAddr)
	if err != nil {
		return nil, nil, err
	}
	priv, err := p2p.LoadOrCreateIdentity("")
	if err != nil {
		return nil, nil, err
	}
	network, err := p2p.NewNetwork(config.P2PConfig{
		ListenAddr:     "/ip4/127.0.0.1/tcp/0",
		BootstrapPeers: []string{peerAddr},
	}, priv, logx.Default())
	if err != nil {
		return nil, nil, err
	}
	cli, err := network.SyncClient(ctx, info.ID)
	if err != nil {
		network.Close()
		return nil, nil, err
	}
	return cli, func() {
		cli.Close()
		network.Close()
	}, nil
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(writeSnapshotCmd, fetchSnapshotCmd)
	snapshotCmd.PersistentFlags().Uint64Var(&snapshotHeight, "height", 0, "Snapshot height")

	fetchSnapshotCmd.Flags().StringVar(&snapshotPeer, "peer", "", "Peer base URL or multiaddr")
	fetchSnapshotCmd.Flags().Uint64Var(&snapshotChunkSize, "chunk-size", 0, "Bytes per chunk request, [sync] default_chunk_size when unset (0 lets the peer choose)")
	fetchSnapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "Write the verified body to this file")
	fetchSnapshotCmd.Flags().BoolVar(&snapshotApply, "apply", false, "Load the balances into local storage and publish the snapshot")
	fetchSnapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 5*time.Minute, "Overall fetch timeout")
}
