package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ggonzalez94/bridgectl/internal/model"
)

// SimulatedWaiter completes each phase after Delay. When FailPhase is set
// that phase fails with FailReason.
type SimulatedWaiter struct {
	Delay      time.Duration
	FailPhase  Phase
	FailReason string
}

func (s SimulatedWaiter) AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return PhaseResult{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return PhaseResult{}, err
	}

	if s.FailPhase != "" && s.FailPhase == phase {
		reason := strings.TrimSpace(s.FailReason)
		if reason == "" {
			reason = "simulated " + string(phase) + " failure"
		}
		return PhaseResult{}, errors.New(reason)
	}

	switch phase {
	case PhaseSourceFinality:
		if tx.SourceTxHash != "" {
			return PhaseResult{TxHash: tx.SourceTxHash}, nil
		}
		return PhaseResult{TxHash: pseudoHash(tx.ID, phase)}, nil
	case PhaseDestination:
		return PhaseResult{TxHash: pseudoHash(tx.ID, phase)}, nil
	default:
		return PhaseResult{}, nil
	}
}

func pseudoHash(txID string, phase Phase) string {
	return crypto.Keccak256Hash([]byte(txID), []byte(phase)).Hex()
}
