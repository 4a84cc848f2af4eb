package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// ReceiptWaiter resolves source finality by polling the source chain for the
// lock transaction receipt and waiting for Confirmations further blocks.
type ReceiptWaiter struct {
	RPCOverrides  map[registry.ChainID]string
	PollInterval  time.Duration
	Confirmations uint64

	dial func(ctx context.Context, rawURL string) (ReceiptClient, error)
}

func NewReceiptWaiter(overrides map[registry.ChainID]string, poll time.Duration, confirmations uint64) *ReceiptWaiter {
	return &ReceiptWaiter{
		RPCOverrides:  overrides,
		PollInterval:  poll,
		Confirmations: confirmations,
		dial: func(ctx context.Context, rawURL string) (ReceiptClient, error) {
			return ethclient.DialContext(ctx, rawURL)
		},
	}
}

func (w *ReceiptWaiter) AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	if phase != PhaseSourceFinality {
		return PhaseResult{}, fmt.Errorf("receipt waiter cannot observe phase %s", phase)
	}
	hash := strings.TrimSpace(tx.SourceTxHash)
	if hash == "" || len(common.FromHex(hash)) != common.HashLength {
		return PhaseResult{}, clierr.New(clierr.CodeUsage, "no valid source transaction hash to watch")
	}
	chain := registry.ChainID(tx.SourceChain)
	rpcURL, err := registry.ResolveRPCURL(w.RPCOverrides[chain], chain)
	if err != nil {
		return PhaseResult{}, err
	}
	client, err := w.dial(ctx, rpcURL)
	if err != nil {
		return PhaseResult{}, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	defer client.Close()

	poll := w.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	txHash := common.HexToHash(hash)
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return PhaseResult{}, fmt.Errorf("source transaction %s reverted on-chain", txHash.Hex())
			}
			if w.confirmed(ctx, client, receipt) {
				return PhaseResult{TxHash: txHash.Hex()}, nil
			}
		}
		// Not-found and transient RPC errors are retried until the phase deadline.
		select {
		case <-ctx.Done():
			return PhaseResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReceiptWaiter) confirmed(ctx context.Context, client ReceiptClient, receipt *types.Receipt) bool {
	if w.Confirmations == 0 || receipt.BlockNumber == nil {
		return true
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return false
	}
	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined >= w.Confirmations
}
