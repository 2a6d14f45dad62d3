package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eigerco/zair/internal/chainoracle"
	"github.com/eigerco/zair/internal/logging"
	"github.com/eigerco/zair/internal/snapshot"
	"github.com/eigerco/zair/internal/storage"
	"github.com/eigerco/zair/pkg/types"
)

func cmdSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	lightwalletdAddr := fs.String("lightwalletd", "127.0.0.1:9067", "lightwalletd gRPC address")
	network := fs.String("network", "test", "network (main or test)")
	start := fs.Uint64("start", 0, "first block height of the snapshot range")
	end := fs.Uint64("end", 0, "last block height of the snapshot range")
	saplingTargetID := fs.String("sapling-target-id", "", "Sapling airdrop nullifier target chain ID")
	orchardTargetID := fs.String("orchard-target-id", "", "Orchard airdrop nullifier target chain ID")
	outDir := fs.String("out", "./snapshot", "output directory for sanitized nullifier files")
	dbHost := fs.String("db-host", "", "PostgreSQL host to persist snapshot roots to (empty skips persistence)")
	dbPort := fs.Int("db-port", 5432, "PostgreSQL port")
	dbUser := fs.String("db-user", "zair", "PostgreSQL user")
	dbPassword := fs.String("db-password", "", "PostgreSQL password")
	dbName := fs.String("db-name", "zair", "PostgreSQL database name")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		return err
	}
	entry := logrus.NewEntry(log)

	client, err := chainoracle.DialLightwalletd(*lightwalletdAddr, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	var store *storage.Store
	if *dbHost != "" {
		store, err = storage.New(ctx, &storage.Config{
			Host: *dbHost, Port: *dbPort, User: *dbUser,
			Password: *dbPassword, Database: *dbName,
			SSLMode: "disable", MaxConns: 20,
		})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	builder := snapshot.NewBuilder(client, client, store, entry)
	result, err := builder.Build(ctx, snapshot.Config{
		Network:         *network,
		Start:           *start,
		End:             *end,
		SaplingTargetID: *saplingTargetID,
		OrchardTargetID: *orchardTargetID,
		OutDir:          *outDir,
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	cfg := types.AirdropConfiguration{
		Network:            types.Network(*network),
		SnapshotHeight:      result.Height,
		SaplingGapTreeRoot:  hexPtr(result.SaplingRoot[:]),
		SaplingAnchor:       hexPtr(result.SaplingAnchor),
		SaplingTargetID:     strPtr(*saplingTargetID),
		OrchardGapTreeRoot:  hexPtr(result.OrchardRoot[:]),
		OrchardAnchor:       hexPtr(result.OrchardAnchor),
		OrchardTargetID:     strPtr(*orchardTargetID),
		PublishedAt:         time.Now(),
	}

	configPath := filepath.Join(*outDir, "airdrop-configuration.json")
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, b, 0o644); err != nil {
		return err
	}

	fmt.Printf("Snapshot built at height %d: sapling=%d nullifiers, orchard=%d nullifiers\n",
		result.Height, result.SaplingCount, result.OrchardCount)
	fmt.Printf("Airdrop configuration written to %s\n", configPath)
	return nil
}

func hexPtr(b []byte) *string {
	s := hex.EncodeToString(b)
	return &s
}

func strPtr(s string) *string { return &s }
