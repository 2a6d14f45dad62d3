// Package gossip distributes published AirdropConfiguration records and
// sanitized-nullifier-file chunk announcements between cooperating
// provers over libp2p-pubsub, so a claimant can bootstrap a snapshot
// without a direct chain-oracle connection of their own.
package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// ProtocolID tags this module's libp2p stream protocol.
const ProtocolID = "/zair/1.0.0"

// ConfigTopic returns the pubsub topic name for a given network and
// snapshot height's AirdropConfiguration announcements.
func ConfigTopic(network string, height uint64) string {
	return fmt.Sprintf("zair/%s/%d/config", network, height)
}

// ChunkTopic returns the pubsub topic name for sanitized-nullifier-file
// chunk announcements at a given network and snapshot height.
func ChunkTopic(network string, height uint64) string {
	return fmt.Sprintf("zair/%s/%d/chunks", network, height)
}

// MessageHandler processes one gossip message.
type MessageHandler func(ctx context.Context, msg *pubsub.Message) error

// Config holds gossip node configuration.
type Config struct {
	ListenAddrs []string
	PrivateKey  crypto.PrivKey
}

// DefaultConfig returns default gossip configuration.
func DefaultConfig() *Config {
	return &Config{ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9030"}}
}

// Node is a gossip participant: it joins a config topic and a chunk topic
// for a single (network, height) pair and lets callers publish to, and
// subscribe from, either.
type Node struct {
	mu sync.Mutex

	host   host.Host
	pubsub *pubsub.PubSub

	configTopic *pubsub.Topic
	chunkTopic  *pubsub.Topic
	configSub   *pubsub.Subscription
	chunkSub    *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNode creates a libp2p host with GossipSub and joins the config/chunk
// topics for the given network and snapshot height.
func NewNode(ctx context.Context, cfg *Config, network string, height uint64) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: generate key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: invalid listen address: %w", err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gossip: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossip: create pubsub: %w", err)
	}

	node := &Node{host: h, pubsub: ps, ctx: nodeCtx, cancel: cancel}

	if node.configTopic, err = ps.Join(ConfigTopic(network, height)); err != nil {
		node.Close()
		return nil, fmt.Errorf("gossip: join config topic: %w", err)
	}
	if node.configSub, err = node.configTopic.Subscribe(); err != nil {
		node.Close()
		return nil, fmt.Errorf("gossip: subscribe config topic: %w", err)
	}
	if node.chunkTopic, err = ps.Join(ChunkTopic(network, height)); err != nil {
		node.Close()
		return nil, fmt.Errorf("gossip: join chunk topic: %w", err)
	}
	if node.chunkSub, err = node.chunkTopic.Subscribe(); err != nil {
		node.Close()
		return nil, fmt.Errorf("gossip: subscribe chunk topic: %w", err)
	}

	return node, nil
}

// PublishConfig gossips a serialized AirdropConfiguration to the topic.
func (n *Node) PublishConfig(ctx context.Context, data []byte) error {
	return n.configTopic.Publish(ctx, data)
}

// PublishChunk gossips a sanitized-nullifier-file chunk announcement.
func (n *Node) PublishChunk(ctx context.Context, data []byte) error {
	return n.chunkTopic.Publish(ctx, data)
}

// ListenConfig runs handler over every config-topic message received on
// this node's subscription, skipping messages this node itself published.
func (n *Node) ListenConfig(handler MessageHandler) {
	n.listen(n.configSub, handler)
}

// ListenChunks runs handler over every chunk-topic message received.
func (n *Node) ListenChunks(handler MessageHandler) {
	n.listen(n.chunkSub, handler)
}

func (n *Node) listen(sub *pubsub.Subscription, handler MessageHandler) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		if handler != nil {
			_ = handler(n.ctx, msg)
		}
	}
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Close tears down the gossip node.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cancel()
	if n.configSub != nil {
		n.configSub.Cancel()
	}
	if n.chunkSub != nil {
		n.chunkSub.Cancel()
	}
	return n.host.Close()
}
