package chainoracle

import (
	"context"
	"fmt"
	"io"

	"github.com/zcash/lightwalletd/walletrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// LightwalletdClient is the concrete CompactBlockSource/TreeStateSource this
// prover runs against: a gRPC connection to a lightwalletd (or zebrad
// direct-RPC-compatible) server's CompactTxStreamer service, grounded on
// the same walletrpc.CompactTxStreamerClient zcash/lightwalletd's own
// ingest loop drives.
type LightwalletdClient struct {
	conn   *grpc.ClientConn
	client walletrpc.CompactTxStreamerClient
}

// DialLightwalletd opens a gRPC connection to addr. creds is nil for a
// plaintext connection (local testnet servers, darkside harnesses);
// production mainnet deployments pass TLS credentials built with
// credentials.NewTLS.
func DialLightwalletd(addr string, creds credentials.TransportCredentials) (*LightwalletdClient, error) {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("chainoracle: dial %s: %w", addr, err)
	}
	return &LightwalletdClient{
		conn:   conn,
		client: walletrpc.NewCompactTxStreamerClient(conn),
	}, nil
}

// Close tears down the underlying gRPC connection.
func (c *LightwalletdClient) Close() error {
	return c.conn.Close()
}

// StreamBlocks implements CompactBlockSource.
func (c *LightwalletdClient) StreamBlocks(ctx context.Context, start, end uint64, fn func(CompactBlock) error) error {
	stream, err := c.client.GetBlockRange(ctx, &walletrpc.BlockRange{
		Start: &walletrpc.BlockID{Height: start},
		End:   &walletrpc.BlockID{Height: end},
	})
	if err != nil {
		return fmt.Errorf("chainoracle: GetBlockRange: %w", err)
	}

	for {
		block, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(convertBlock(block)); err != nil {
			return err
		}
	}
}

// TreeStateAt implements TreeStateSource.
func (c *LightwalletdClient) TreeStateAt(ctx context.Context, height uint64) (TreeState, error) {
	ts, err := c.client.GetTreeState(ctx, &walletrpc.BlockID{Height: height})
	if err != nil {
		return TreeState{}, fmt.Errorf("chainoracle: GetTreeState: %w", err)
	}

	var state TreeState
	state.Height = ts.Height
	copy(state.BlockHash[:], ts.Hash)
	state.SaplingFrontier = []byte(ts.SaplingTree)
	state.OrchardFrontier = []byte(ts.OrchardTree)
	return state, nil
}

func convertBlock(b *walletrpc.CompactBlock) CompactBlock {
	out := CompactBlock{Height: b.Height}
	copy(out.Hash[:], b.Hash)

	for _, tx := range b.Vtx {
		copy(out.TxID[:], tx.Hash)

		for _, spend := range tx.Spends {
			s := Spend{Pool: PoolSapling}
			copy(s.Nullifier[:], spend.Nf)
			out.Spends = append(out.Spends, s)
		}
		for _, action := range tx.Actions {
			s := Spend{Pool: PoolOrchard}
			copy(s.Nullifier[:], action.Nullifier)
			out.Spends = append(out.Spends, s)
		}

		for _, output := range tx.Outputs {
			o := Output{Pool: PoolSapling, EncryptedCiphertext: output.Ciphertext, EphemeralKey: output.EphemeralKey}
			copy(o.Commitment[:], output.Cmu)
			out.Outputs = append(out.Outputs, o)
		}
		for _, action := range tx.Actions {
			o := Output{Pool: PoolOrchard, EncryptedCiphertext: action.Ciphertext, EphemeralKey: action.EphemeralKey}
			copy(o.Commitment[:], action.Cmx)
			out.Outputs = append(out.Outputs, o)
		}
	}
	return out
}
