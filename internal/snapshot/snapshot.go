// Package snapshot builds and persists the per-pool sanitized nullifier
// list and gap-tree root that together anchor an airdrop snapshot, by
// streaming the chain oracle for a block range.
package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/eigerco/zair/internal/chainoracle"
	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/gaptree"
	"github.com/eigerco/zair/internal/nullifier"
	"github.com/eigerco/zair/internal/storage"
)

// Config configures one snapshot build.
type Config struct {
	Network       string
	Start, End    uint64
	SaplingTargetID string
	OrchardTargetID string
	OutDir        string
}

// Result is everything a snapshot build produces, ready to be gossiped as
// an AirdropConfiguration by the caller.
type Result struct {
	Height           uint64
	SaplingRoot      gaptree.Node
	OrchardRoot      gaptree.Node
	SaplingAnchor    []byte
	OrchardAnchor    []byte
	SaplingCount     int
	OrchardCount     int
	SaplingFile      string
	OrchardFile      string
}

// Builder streams the chain oracle, sanitizes nullifiers per pool, and
// persists a sorted flat file plus the gap-tree root for each pool.
type Builder struct {
	Blocks     chainoracle.CompactBlockSource
	Trees      chainoracle.TreeStateSource
	Retry      chainoracle.RetryPolicy
	Store      *storage.Store
	Log        *logrus.Entry
}

// NewBuilder constructs a Builder with the default retry policy.
func NewBuilder(blocks chainoracle.CompactBlockSource, trees chainoracle.TreeStateSource, store *storage.Store, log *logrus.Entry) *Builder {
	return &Builder{
		Blocks: blocks,
		Trees:  trees,
		Retry:  chainoracle.DefaultRetryPolicy(),
		Store:  store,
		Log:    log,
	}
}

// Build streams [cfg.Start, cfg.End], partitions nullifiers by pool,
// sanitizes each partition, persists the sanitized lists and gap-tree
// roots, and fetches the note-commitment anchor at end+1. Any I/O failure
// aborts the whole build; no partial configuration is written.
func (b *Builder) Build(ctx context.Context, cfg Config) (*Result, error) {
	var saplingRaw, orchardRaw []nullifier.Nullifier

	err := chainoracle.Do(ctx, b.Retry, b.Log, func(ctx context.Context) error {
		saplingRaw, orchardRaw = nil, nil
		return b.Blocks.StreamBlocks(ctx, cfg.Start, cfg.End, func(blk chainoracle.CompactBlock) error {
			for _, s := range blk.Spends {
				nf, err := nullifier.New(s.Nullifier[:])
				if err != nil {
					return fmt.Errorf("snapshot: decode nullifier at height %d: %w", blk.Height, err)
				}
				switch s.Pool {
				case chainoracle.PoolSapling:
					saplingRaw = append(saplingRaw, nf)
				case chainoracle.PoolOrchard:
					orchardRaw = append(orchardRaw, nf)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: stream blocks: %w", err)
	}

	saplingSet, err := nullifier.Sanitize(nullifier.Sapling, saplingRaw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: sanitize sapling: %w", err)
	}
	orchardSet, err := nullifier.Sanitize(nullifier.Orchard, orchardRaw)
	if err != nil {
		return nil, fmt.Errorf("snapshot: sanitize orchard: %w", err)
	}

	if b.Log != nil {
		b.Log.WithFields(logrus.Fields{
			"sapling_count": len(saplingSet),
			"orchard_count": len(orchardSet),
			"start":         cfg.Start,
			"end":           cfg.End,
		}).Info("snapshot: sanitized nullifier sets built")
	}

	saplingTree, err := gaptree.NewDenseTree(sapling.Scheme{}, nullifier.Sapling, saplingSet)
	if err != nil {
		return nil, fmt.Errorf("snapshot: build sapling gap tree: %w", err)
	}
	orchardTree, err := gaptree.NewDenseTree(orchard.Scheme{}, nullifier.Orchard, orchardSet)
	if err != nil {
		return nil, fmt.Errorf("snapshot: build orchard gap tree: %w", err)
	}

	var treeState chainoracle.TreeState
	err = chainoracle.Do(ctx, b.Retry, b.Log, func(ctx context.Context) error {
		var err error
		treeState, err = b.Trees.TreeStateAt(ctx, cfg.End+1)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch tree state at %d: %w", cfg.End+1, err)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create output dir: %w", err)
	}

	saplingFile := filepath.Join(cfg.OutDir, fmt.Sprintf("sapling-%d.bin", cfg.End))
	if err := writeSortedList(saplingFile, saplingSet); err != nil {
		return nil, fmt.Errorf("snapshot: write sapling list: %w", err)
	}
	orchardFile := filepath.Join(cfg.OutDir, fmt.Sprintf("orchard-%d.bin", cfg.End))
	if err := writeSortedList(orchardFile, orchardSet); err != nil {
		return nil, fmt.Errorf("snapshot: write orchard list: %w", err)
	}

	if b.Store != nil {
		saplingBytes := make([][]byte, len(saplingSet))
		for i, nf := range saplingSet {
			saplingBytes[i] = nf.Bytes()
		}
		if err := b.Store.SaveSanitizedNullifiers(ctx, cfg.Network, cfg.End, "sapling", saplingBytes); err != nil {
			return nil, fmt.Errorf("snapshot: persist sapling nullifiers: %w", err)
		}

		orchardBytes := make([][]byte, len(orchardSet))
		for i, nf := range orchardSet {
			orchardBytes[i] = nf.Bytes()
		}
		if err := b.Store.SaveSanitizedNullifiers(ctx, cfg.Network, cfg.End, "orchard", orchardBytes); err != nil {
			return nil, fmt.Errorf("snapshot: persist orchard nullifiers: %w", err)
		}

		saplingRoot := saplingTree.Root()
		orchardRoot := orchardTree.Root()
		if err := b.Store.SaveSnapshotRoot(ctx, cfg.Network, cfg.End, "sapling", saplingRoot[:], treeState.SaplingFrontier, []byte(cfg.SaplingTargetID)); err != nil {
			return nil, fmt.Errorf("snapshot: persist sapling root: %w", err)
		}
		if err := b.Store.SaveSnapshotRoot(ctx, cfg.Network, cfg.End, "orchard", orchardRoot[:], treeState.OrchardFrontier, []byte(cfg.OrchardTargetID)); err != nil {
			return nil, fmt.Errorf("snapshot: persist orchard root: %w", err)
		}
	}

	return &Result{
		Height:        cfg.End,
		SaplingRoot:   saplingTree.Root(),
		OrchardRoot:   orchardTree.Root(),
		SaplingAnchor: treeState.SaplingFrontier,
		OrchardAnchor: treeState.OrchardFrontier,
		SaplingCount:  len(saplingSet),
		OrchardCount:  len(orchardSet),
		SaplingFile:   saplingFile,
		OrchardFile:   orchardFile,
	}, nil
}

// writeSortedList persists a sanitized nullifier set as packed 32-byte
// values in sort order, the raw sorted list per SPEC_FULL.md §4.3.
func writeSortedList(path string, set []nullifier.Nullifier) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, nf := range set {
		b := nf.Bytes()
		if _, err := f.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// ErrInvalidData is returned by ReadSortedList when a sanitized nullifier
// file's size is not a multiple of nullifier.Size, per spec.md §6.
var ErrInvalidData = errors.New("snapshot: invalid sanitized nullifier file")

// ReadSortedList reads back a file written by writeSortedList, for
// consumption by the claim builder when it loads a published snapshot.
func ReadSortedList(path string) ([]nullifier.Nullifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size()%int64(nullifier.Size) != 0 {
		return nil, fmt.Errorf("%w: %s is %d bytes, not a multiple of %d", ErrInvalidData, path, info.Size(), nullifier.Size)
	}

	var out []nullifier.Nullifier
	buf := make([]byte, nullifier.Size)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		nf, err := nullifier.New(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, nf)
	}
	return out, nil
}

// WriteDenseTree serializes a dense gap tree per SPEC_FULL.md §4.2: a
// little-endian 8-byte leaf count followed by every node in level order
// (leaves first, then each upper level), 32 bytes per node.
func WriteDenseTree(path string, tree *gaptree.DenseTree) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(tree.LeafCount())); err != nil {
		return err
	}
	for _, level := range tree.Levels() {
		for _, node := range level {
			if _, err := f.Write(node[:]); err != nil {
				return err
			}
		}
	}
	return nil
}
