// Package chainoracle defines the interfaces the snapshot builder and
// claim builder use to pull chain data, the retry/backoff policy every
// call against those interfaces is expected to go through, and
// LightwalletdClient, the gRPC implementation of both driving this
// prover's CLI.
package chainoracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Pool identifies which shielded pool a nullifier or commitment belongs to.
type Pool int

const (
	PoolSapling Pool = iota
	PoolOrchard
)

// Spend is one spent-note nullifier observed within a compact block.
type Spend struct {
	Pool       Pool
	Nullifier  [32]byte
}

// Output is one note-creating output observed within a compact block,
// carrying only the fields the claim builder's NoteDiscovery collaborator
// needs to locate and decrypt candidate notes.
type Output struct {
	Pool                Pool
	Commitment           [32]byte
	EncryptedCiphertext  []byte
	EphemeralKey         []byte
}

// CompactBlock is one block's worth of shielded-pool activity.
type CompactBlock struct {
	Height  uint64
	Hash    [32]byte
	TxID    [32]byte
	Spends  []Spend
	Outputs []Output
}

// TreeState is the note-commitment tree frontier at a given height, used
// to seed a bridge-tree witness tracker or to bind a circuit anchor.
type TreeState struct {
	Height          uint64
	BlockHash       [32]byte
	SaplingFrontier []byte
	OrchardFrontier []byte
}

// CompactBlockSource streams compact blocks for a height range.
type CompactBlockSource interface {
	// StreamBlocks sends every block in [start, end] (inclusive) to fn, in
	// height order, stopping at the first error either StreamBlocks or fn
	// returns.
	StreamBlocks(ctx context.Context, start, end uint64, fn func(CompactBlock) error) error
}

// TreeStateSource fetches the note-commitment tree frontier at a height.
type TreeStateSource interface {
	TreeStateAt(ctx context.Context, height uint64) (TreeState, error)
}

// ErrStreamTimeout marks a streaming read that missed a per-message
// deadline; IsRetryable treats it as retryable. Nothing in this package
// returns it: LightwalletdClient.StreamBlocks sets no per-message deadline.
var ErrStreamTimeout = errors.New("chainoracle: stream read timed out")

// RetryPolicy configures the exponential backoff applied to chain-oracle
// calls. Only transport errors and a fixed set of gRPC status codes are
// retried; everything else surfaces immediately.
type RetryPolicy struct {
	InitialDelay      time.Duration
	BackoffFactor     float64
	MaxDelay          time.Duration
	MaxAttempts       int
	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	PerMessageTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used absent explicit configuration.
// Do applies only the backoff fields (InitialDelay, BackoffFactor,
// MaxDelay, MaxAttempts); ConnectTimeout, RequestTimeout and
// PerMessageTimeout are carried in the policy, but nothing in this package
// applies them to a connection, a unary call or a streaming read.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay:      500 * time.Millisecond,
		BackoffFactor:     2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       8,
		ConnectTimeout:    10 * time.Second,
		RequestTimeout:    30 * time.Second,
		PerMessageTimeout: 60 * time.Second,
	}
}

var retryableCodes = map[codes.Code]bool{
	codes.Unavailable:      true,
	codes.ResourceExhausted: true,
	codes.Aborted:          true,
	codes.DeadlineExceeded: true,
	codes.Unknown:          true,
}

// IsRetryable reports whether err should be retried per §5's classification:
// transport errors (no gRPC status attached), the stream-timeout sentinel,
// and a designated set of gRPC status codes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStreamTimeout) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		// No gRPC status attached: treat as a transport-level error.
		return true
	}
	return retryableCodes[st.Code()]
}

// Do runs fn, retrying with exponential backoff while IsRetryable(err) is
// true, up to policy.MaxAttempts. It logs each retry via log, or discards
// logging entirely if log is nil.
func Do(ctx context.Context, policy RetryPolicy, log *logrus.Entry, fn func(ctx context.Context) error) error {
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		if log != nil {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   lastErr.Error(),
			}).Warn("chain oracle call failed, retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("chainoracle: exhausted %d attempts: %w", policy.MaxAttempts, lastErr)
}
