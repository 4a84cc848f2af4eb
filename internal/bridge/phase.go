package bridge

import (
	"context"
	"fmt"

	"github.com/ggonzalez94/bridgectl/internal/model"
)

// Phase is one leg of the bridge lifecycle.
type Phase string

const (
	PhaseSourceFinality Phase = "source_finality"
	PhaseRelay          Phase = "relay_attestation"
	PhaseDestination    Phase = "destination_confirmation"
)

// PhaseResult carries what a waiter observed. TxHash is the source
// transaction for PhaseSourceFinality and the destination transaction for
// PhaseDestination.
type PhaseResult struct {
	TxHash string
}

// PhaseWaiter blocks until phase completes for tx. A nil error means the
// phase succeeded.
type PhaseWaiter interface {
	AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error)
}

type PhaseWaiterFunc func(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error)

func (f PhaseWaiterFunc) AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	return f(ctx, tx, phase)
}

// PhaseRouter dispatches each phase to its own waiter.
type PhaseRouter struct {
	Waiters  map[Phase]PhaseWaiter
	Fallback PhaseWaiter
}

func (r PhaseRouter) AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	if w, ok := r.Waiters[phase]; ok && w != nil {
		return w.AwaitPhase(ctx, tx, phase)
	}
	if r.Fallback != nil {
		return r.Fallback.AwaitPhase(ctx, tx, phase)
	}
	return PhaseResult{}, fmt.Errorf("no waiter configured for phase %s", phase)
}

type step struct {
	phase Phase
	next  model.TxStatus
}

// lifecycle is the fixed order of phases and the state each one unlocks.
var lifecycle = []step{
	{phase: PhaseSourceFinality, next: model.StatusConfirming},
	{phase: PhaseRelay, next: model.StatusBridging},
	{phase: PhaseDestination, next: model.StatusCompleted},
}
