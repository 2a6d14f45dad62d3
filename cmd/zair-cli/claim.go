package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/eigerco/zair/internal/chainoracle"
	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/paramcache"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/claim"
	"github.com/eigerco/zair/internal/logging"
	"github.com/eigerco/zair/pkg/types"
)

func cmdClaim(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	lightwalletdAddr := fs.String("lightwalletd", "127.0.0.1:9067", "lightwalletd gRPC address")
	network := fs.String("network", "test", "network (main or test)")
	notesFile := fs.String("notes-file", "", "JSON file of notes already decrypted by a viewing-key wallet (required)")
	configFile := fs.String("config", "", "path to the published airdrop-configuration.json (required)")
	birthday := fs.Uint64("birthday", 0, "wallet birthday height")
	snapshotStart := fs.Uint64("snapshot-start", 0, "snapshot start height")
	snapshotEnd := fs.Uint64("snapshot-end", 0, "snapshot end height")
	snapshotDir := fs.String("snapshot-dir", "./snapshot", "directory holding the sanitized nullifier files")
	checkpointPath := fs.String("checkpoint", "./claim-checkpoint.json", "scan checkpoint file")
	cacheDir := fs.String("param-cache", "./params", "proving/verifying key cache directory")
	orchardSHA256 := fs.Bool("orchard-sha256", false, "use the SHA-256 Orchard value commitment parameter set")
	saplingSHA256 := fs.Bool("sapling-sha256", false, "use the SHA-256 Sapling value commitment scheme")
	outDir := fs.String("out", "./claim", "output directory for claim-proofs.json/claim-secrets.json")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *notesFile == "" || *configFile == "" {
		return fmt.Errorf("claim: -notes-file and -config are required")
	}

	log, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		return err
	}
	entry := logrus.NewEntry(log)

	cfgAirdrop, err := readAirdropConfiguration(*configFile)
	if err != nil {
		return err
	}

	client, err := chainoracle.DialLightwalletd(*lightwalletdAddr, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	cache, err := paramcache.New(*cacheDir)
	if err != nil {
		return err
	}
	saplingMgr := sapling.NewManager(cache)
	orchardMgr := orchard.NewManager(cache)

	saplingScheme := sapling.ValueCommitmentNative
	if *saplingSHA256 {
		saplingScheme = sapling.ValueCommitmentSHA256
	}
	orchardSize := orchard.ParameterSizeNative
	if *orchardSHA256 {
		orchardSize = orchard.ParameterSizeSHA256
	}
	if err := saplingMgr.Setup(saplingScheme); err != nil {
		return fmt.Errorf("claim: sapling setup: %w", err)
	}
	if err := orchardMgr.Setup(orchardSize); err != nil {
		return fmt.Errorf("claim: orchard setup: %w", err)
	}

	builder := claim.NewBuilder(client, claim.FileDiscovery{Path: *notesFile}, saplingMgr, orchardMgr, entry)

	saplingTargetID := ""
	if cfgAirdrop.SaplingTargetID != nil {
		saplingTargetID = *cfgAirdrop.SaplingTargetID
	}
	orchardTargetID := ""
	if cfgAirdrop.OrchardTargetID != nil {
		orchardTargetID = *cfgAirdrop.OrchardTargetID
	}

	proofs, _, err := builder.Build(ctx, claim.Config{
		Network:         types.Network(*network),
		Birthday:        *birthday,
		SnapshotStart:   *snapshotStart,
		SnapshotEnd:     *snapshotEnd,
		SnapshotDir:     *snapshotDir,
		CheckpointPath:  *checkpointPath,
		SaplingTargetID: saplingTargetID,
		OrchardTargetID: orchardTargetID,
		SaplingScheme:   saplingScheme,
		OrchardSize:     orchardSize,
		OutDir:          *outDir,
	}, cfgAirdrop)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	fmt.Printf("Built %d sapling claim(s) and %d orchard claim(s) in %s\n",
		len(proofs.Sapling), len(proofs.Orchard), *outDir)
	return nil
}

func readAirdropConfiguration(path string) (*types.AirdropConfiguration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read airdrop configuration: %w", err)
	}
	var cfg types.AirdropConfiguration
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("decode airdrop configuration: %w", err)
	}
	return &cfg, nil
}
