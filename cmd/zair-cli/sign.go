package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/eigerco/zair/internal/signer"
	"github.com/eigerco/zair/pkg/common"
	"github.com/eigerco/zair/pkg/types"
)

// messageEntry is the JSON wire shape of the -messages file: one
// recipient-message assignment per claim being signed.
type messageEntry struct {
	Pool             string             `json:"pool"`
	AirdropNullifier types.HexNullifier `json:"airdrop_nullifier"`
	Message          string             `json:"message"`
}

func cmdSign(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	proofsFile := fs.String("proofs", "", "claim-proofs.json produced by the claim command (required)")
	secretsFile := fs.String("secrets", "", "claim-secrets.json produced by the claim command (required)")
	messagesFile := fs.String("messages", "", "JSON file of {pool, airdrop_nullifier, message} entries (required)")
	configFile := fs.String("config", "", "path to the published airdrop-configuration.json (required)")
	seedHex := fs.String("seed", "", "hex-encoded ZIP-32 seed")
	accountIndex := fs.Uint("account", 0, "ZIP-32 account index")
	network := fs.String("network", "test", "network (main or test)")
	outFile := fs.String("out", "./submission.json", "output submission file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *proofsFile == "" || *secretsFile == "" || *messagesFile == "" || *configFile == "" {
		return fmt.Errorf("sign: -proofs, -secrets, -messages and -config are required")
	}

	var proofs types.ClaimProofsOutput
	if err := readJSONFile(*proofsFile, &proofs); err != nil {
		return fmt.Errorf("sign: read proofs: %w", err)
	}
	var secrets types.ClaimSecretsOutput
	if err := readJSONFile(*secretsFile, &secrets); err != nil {
		return fmt.Errorf("sign: read secrets: %w", err)
	}
	var entries []messageEntry
	if err := readJSONFile(*messagesFile, &entries); err != nil {
		return fmt.Errorf("sign: read messages: %w", err)
	}
	cfgAirdrop, err := readAirdropConfiguration(*configFile)
	if err != nil {
		return err
	}

	seed, err := common.HexToBytes(*seedHex)
	if err != nil {
		return fmt.Errorf("sign: decode -seed: %w", err)
	}

	messages := make([]signer.MessageAssignment, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, signer.MessageAssignment{
			Pool:             e.Pool,
			AirdropNullifier: e.AirdropNullifier,
			Message:          []byte(e.Message),
		})
	}

	saplingTargetID := ""
	if cfgAirdrop.SaplingTargetID != nil {
		saplingTargetID = *cfgAirdrop.SaplingTargetID
	}
	orchardTargetID := ""
	if cfgAirdrop.OrchardTargetID != nil {
		orchardTargetID = *cfgAirdrop.OrchardTargetID
	}

	sub, err := signer.Sign(types.Network(*network), &proofs, &secrets, signer.Config{
		Account:         signer.AccountContext{Seed: seed, AccountIndex: uint32(*accountIndex)},
		SaplingTargetID: saplingTargetID,
		OrchardTargetID: orchardTargetID,
		Messages:        messages,
	})
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	b, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outFile, b, 0o644); err != nil {
		return err
	}

	fmt.Printf("Signed %d claim(s); submission written to %s\n", len(sub.Claims), *outFile)
	return nil
}

func readJSONFile(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
