// Zair CLI - command-line interface for the Sapling/Orchard airdrop prover
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const (
	version = "0.1.0"
	banner  = `
 _____      _
|__  /__ _(_)_ __
  / // _\ | | '__|
 / /| (_| | | |
/____\__,_|_|_|

  Zair Claim Prover v%s
`
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	var err error
	switch command := os.Args[1]; command {
	case "version":
		fmt.Printf("zair-cli v%s\n", version)
	case "help":
		printUsage()
	case "snapshot":
		err = cmdSnapshot(ctx, os.Args[2:])
	case "claim":
		err = cmdClaim(ctx, os.Args[2:])
	case "sign":
		err = cmdSign(ctx, os.Args[2:])
	case "verify":
		err = cmdVerify(ctx, os.Args[2:])
	case "gossip":
		err = cmdGossip(ctx, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Zair CLI - Sapling/Orchard airdrop claim prover")
	fmt.Println()
	fmt.Println("Usage: zair-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version   Show version information")
	fmt.Println("  help      Show this help message")
	fmt.Println("  snapshot  Build a snapshot (sanitized nullifier lists + gap-tree roots)")
	fmt.Println("  claim     Scan notes, build witnesses, prove, and emit claim files")
	fmt.Println("  sign      Bind claims to recipient messages and produce a submission")
	fmt.Println("  verify    Check a submission against a published airdrop configuration")
	fmt.Println("  gossip    Publish or listen for airdrop configuration announcements (publish|listen)")
	fmt.Println()
	fmt.Println("Use 'zair-cli <command> -h' for a command's own flags.")
}
