package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/paramcache"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/logging"
	"github.com/eigerco/zair/internal/storage"
	"github.com/eigerco/zair/internal/verifier"
	"github.com/eigerco/zair/pkg/types"
)

func cmdVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	submissionFile := fs.String("submission", "", "submission.json to verify (required)")
	configFile := fs.String("config", "", "path to the published airdrop-configuration.json (required)")
	cacheDir := fs.String("param-cache", "./params", "proving/verifying key cache directory")
	dbHost := fs.String("db-host", "", "PostgreSQL host enforcing cross-submission uniqueness (empty skips persistence)")
	dbPort := fs.Int("db-port", 5432, "PostgreSQL port")
	dbUser := fs.String("db-user", "zair", "PostgreSQL user")
	dbPassword := fs.String("db-password", "", "PostgreSQL password")
	dbName := fs.String("db-name", "zair", "PostgreSQL database name")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *submissionFile == "" || *configFile == "" {
		return fmt.Errorf("verify: -submission and -config are required")
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
	var sub types.Submission
	if err := readJSONFile(*submissionFile, &sub); err != nil {
		return fmt.Errorf("verify: read submission: %w", err)
	}

	cache, err := paramcache.New(*cacheDir)
	if err != nil {
		return err
	}
	saplingMgr := sapling.NewManager(cache)
	orchardMgr := orchard.NewManager(cache)

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

	v := verifier.New(cfgAirdrop, saplingMgr, orchardMgr, store, entry)
	if err := v.SetupAll(); err != nil {
		return fmt.Errorf("verify: setup: %w", err)
	}

	result, err := v.Verify(ctx, &sub)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Printf("Accepted: %d, Failed: %d\n", len(result.Accepted), len(result.Failed))
	for _, f := range result.Failed {
		fmt.Println("  " + f.String())
	}
	if !result.OK() {
		return fmt.Errorf("verify: %d claim(s) rejected", len(result.Failed))
	}
	return nil
}
