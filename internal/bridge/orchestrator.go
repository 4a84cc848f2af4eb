package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/events"
	"github.com/ggonzalez94/bridgectl/internal/id"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
)

const (
	DefaultPhaseTimeout   = 10 * time.Minute
	DefaultPublishTimeout = 5 * time.Second

	eventBuffer = 256
)

// StatusFunc is invoked once per transition, in order, on the goroutine that
// performed the transition.
type StatusFunc func(status model.TxStatus, txID string)

// LogStore is the persisted mirror of every transaction.
type LogStore interface {
	Append(ctx context.Context, tx model.BridgeTransaction) error
	Update(ctx context.Context, tx model.BridgeTransaction) error
	Get(id string) (model.BridgeTransaction, error)
	All() []model.BridgeTransaction
}

type SessionSource interface {
	CurrentSession() (wallet.Session, bool)
}

type Options struct {
	Waiter       PhaseWaiter
	PhaseTimeout time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Publisher    events.Publisher
	// PublishTimeout bounds one status event write.
	PublishTimeout time.Duration
}

type Orchestrator struct {
	store        LogStore
	sessions     SessionSource
	waiter       PhaseWaiter
	phaseTimeout time.Duration
	log          zerolog.Logger
	metrics      *metrics.Metrics
	publisher    events.Publisher

	// Status events are published off the transition path, in order, by a
	// single drainer goroutine.
	events         chan events.StatusEvent
	eventsDone     chan struct{}
	stopEvents     sync.Once
	publishTimeout time.Duration

	baseCtx context.Context
	abort   context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]chan struct{}
	closed   bool
}

func New(store LogStore, sessions SessionSource, opts Options) *Orchestrator {
	if opts.Waiter == nil {
		opts.Waiter = SimulatedWaiter{Delay: 2 * time.Second}
	}
	if opts.PhaseTimeout <= 0 {
		opts.PhaseTimeout = DefaultPhaseTimeout
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	baseCtx, abort := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:        store,
		sessions:     sessions,
		waiter:       opts.Waiter,
		phaseTimeout: opts.PhaseTimeout,
		log:          opts.Logger.With().Str("component", "orchestrator").Logger(),
		metrics:      opts.Metrics,
		publisher:    opts.Publisher,
		baseCtx:      baseCtx,
		abort:        abort,
		inFlight:     map[string]chan struct{}{},

		events:         make(chan events.StatusEvent, eventBuffer),
		eventsDone:     make(chan struct{}),
		publishTimeout: opts.PublishTimeout,
	}
	go o.publishLoop()
	return o
}

// Submit reads the current wallet session and submits instr against it.
func (o *Orchestrator) Submit(ctx context.Context, instr model.BridgeInstruction, onStatus StatusFunc) (model.BridgeTransaction, error) {
	if o.sessions == nil {
		return model.BridgeTransaction{}, clierr.New(clierr.CodeNoProvider, "no wallet session manager configured")
	}
	session, ok := o.sessions.CurrentSession()
	if !ok {
		chain, token := submissionLabels(instr)
		o.metrics.Submission(chain, token, false)
		return model.BridgeTransaction{}, clierr.New(clierr.CodeSession, "no wallet connected")
	}
	return o.SubmitWithSession(ctx, instr, session, onStatus)
}

// SubmitWithSession validates instr, records it as PENDING, fires the PENDING
// callback and returns. The remaining transitions run in the background and
// cannot be cancelled through ctx.
func (o *Orchestrator) SubmitWithSession(ctx context.Context, instr model.BridgeInstruction, session wallet.Session, onStatus StatusFunc) (model.BridgeTransaction, error) {
	v, err := Validate(instr)
	if err != nil {
		o.metrics.Submission(metrics.Unvalidated, metrics.Unvalidated, false)
		return model.BridgeTransaction{}, err
	}
	if err := checkSession(session, v.Source.ID); err != nil {
		o.metrics.Submission(string(v.Source.ID), v.Token.Symbol, false)
		return model.BridgeTransaction{}, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return model.BridgeTransaction{}, clierr.New(clierr.CodeUnavailable, "orchestrator is shutting down")
	}
	now := time.Now().UTC()
	tx := model.BridgeTransaction{
		ID:               id.NewTransactionID(),
		SourceChain:      v.Instruction.SourceChain,
		SourceToken:      v.Token.Symbol,
		Amount:           v.Amount.Decimal,
		AmountBaseUnits:  v.Amount.BaseUnits,
		DestinationChain: v.Instruction.DestinationChain,
		DestinationToken: v.Token.Symbol,
		Status:           model.StatusPending,
		SourceTxHash:     v.Instruction.SourceTxHash,
		Timestamp:        now,
		UpdatedAt:        now,
		UserAddress:      session.Address,
	}
	done := make(chan struct{})
	o.inFlight[tx.ID] = done
	o.wg.Add(1)
	o.mu.Unlock()

	if err := o.store.Append(ctx, tx); err != nil {
		if clierr.CodeOf(err) != clierr.CodePersistence {
			o.finish(tx.ID, done)
			return model.BridgeTransaction{}, err
		}
		o.log.Warn().Err(err).Str("tx_id", tx.ID).Msg("pending record kept in memory only")
	}
	o.metrics.Submission(tx.SourceChain, tx.SourceToken, true)
	o.log.Info().
		Str("tx_id", tx.ID).
		Str("source_chain", tx.SourceChain).
		Str("token", tx.SourceToken).
		Str("amount", tx.Amount).
		Str("user_address", tx.UserAddress).
		Msg("bridge submitted")
	o.announce(tx, onStatus)

	go o.drive(tx, onStatus, done)
	return tx, nil
}

func submissionLabels(instr model.BridgeInstruction) (string, string) {
	v, err := Validate(instr)
	if err != nil {
		return metrics.Unvalidated, metrics.Unvalidated
	}
	return string(v.Source.ID), v.Token.Symbol
}

func checkSession(session wallet.Session, source registry.ChainID) error {
	if strings.TrimSpace(session.Address) == "" {
		return clierr.New(clierr.CodeSession, "no wallet connected")
	}
	if session.ChainID != source {
		return clierr.New(clierr.CodeSession, fmt.Sprintf("wallet is on %s but the transfer starts on %s; switch chains first", session.ChainID, source))
	}
	return nil
}

// drive runs the phases of one transaction in order. It is the only writer
// of tx after Submit returns.
func (o *Orchestrator) drive(tx model.BridgeTransaction, onStatus StatusFunc, done chan struct{}) {
	defer o.finish(tx.ID, done)

	for _, s := range lifecycle {
		result, err := o.await(tx, s.phase)
		if err != nil {
			o.fail(tx, s.phase, err, onStatus)
			return
		}
		switch s.phase {
		case PhaseSourceFinality:
			if result.TxHash != "" {
				tx.SourceTxHash = result.TxHash
			}
		case PhaseDestination:
			if strings.TrimSpace(result.TxHash) == "" {
				o.fail(tx, s.phase, fmt.Errorf("destination confirmation carried no transaction hash"), onStatus)
				return
			}
			tx.DestinationTxHash = result.TxHash
		}
		tx.Status = s.next
		tx.UpdatedAt = time.Now().UTC()
		o.persist(tx)
		o.announce(tx, onStatus)
	}
}

// await bounds one phase by the phase timeout even when the waiter ignores
// its context, and turns waiter panics into errors.
func (o *Orchestrator) await(tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	ctx, cancel := context.WithTimeout(o.baseCtx, o.phaseTimeout)
	defer cancel()

	type outcome struct {
		result PhaseResult
		err    error
	}
	ch := make(chan outcome, 1)
	started := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("phase waiter panicked: %v", r)}
			}
		}()
		res, err := o.waiter.AwaitPhase(ctx, tx, phase)
		ch <- outcome{result: res, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	if out.err == nil && ctx.Err() != nil {
		out.err = ctx.Err()
	}
	if out.err != nil {
		switch {
		case o.baseCtx.Err() != nil:
			out.err = fmt.Errorf("interrupted by shutdown")
		case ctx.Err() == context.DeadlineExceeded:
			out.err = fmt.Errorf("timed out after %s", o.phaseTimeout)
		}
	}
	o.metrics.Phase(string(phase), out.err == nil, time.Since(started))
	return out.result, out.err
}

func (o *Orchestrator) fail(tx model.BridgeTransaction, phase Phase, cause error, onStatus StatusFunc) {
	tx.Status = model.StatusFailed
	tx.FailureReason = fmt.Sprintf("%s failed: %v", strings.ReplaceAll(string(phase), "_", " "), cause)
	tx.UpdatedAt = time.Now().UTC()
	o.log.Warn().Str("tx_id", tx.ID).Str("phase", string(phase)).Err(cause).Msg("bridge failed")
	o.persist(tx)
	o.announce(tx, onStatus)
}

func (o *Orchestrator) persist(tx model.BridgeTransaction) {
	if err := o.store.Update(context.Background(), tx); err != nil {
		o.log.Error().Err(err).Str("tx_id", tx.ID).Str("status", string(tx.Status)).Msg("transition not persisted")
	}
}

func (o *Orchestrator) announce(tx model.BridgeTransaction, onStatus StatusFunc) {
	o.metrics.Transition(string(tx.Status), tx.Status.Terminal())
	if tx.Status.Terminal() {
		o.log.Info().Str("tx_id", tx.ID).Str("status", string(tx.Status)).Str("reason", tx.FailureReason).Msg("bridge finished")
	} else {
		o.log.Debug().Str("tx_id", tx.ID).Str("status", string(tx.Status)).Msg("bridge transition")
	}
	o.notify(tx, onStatus)
	select {
	case o.events <- events.FromTransaction(tx):
	default:
		o.log.Warn().Str("tx_id", tx.ID).Str("status", string(tx.Status)).Msg("status event dropped; publish queue full")
	}
}

func (o *Orchestrator) notify(tx model.BridgeTransaction, onStatus StatusFunc) {
	if onStatus == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("tx_id", tx.ID).Interface("panic", r).Msg("status callback panicked")
		}
	}()
	onStatus(tx.Status, tx.ID)
}

func (o *Orchestrator) publishLoop() {
	defer close(o.eventsDone)
	for event := range o.events {
		ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.log.Warn().Err(err).Str("tx_id", event.TransactionID).Msg("status event not published")
		}
		cancel()
	}
}

func (o *Orchestrator) closeEvents() {
	o.stopEvents.Do(func() { close(o.events) })
}

func (o *Orchestrator) finish(txID string, done chan struct{}) {
	o.mu.Lock()
	delete(o.inFlight, txID)
	o.mu.Unlock()
	close(done)
	o.wg.Done()
}

func (o *Orchestrator) GetTransaction(txID string) (model.BridgeTransaction, error) {
	return o.store.Get(txID)
}

// ListTransactions returns every transaction, newest first.
func (o *Orchestrator) ListTransactions() []model.BridgeTransaction {
	return o.store.All()
}

// Wait blocks until txID reaches a terminal state or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context, txID string) (model.BridgeTransaction, error) {
	o.mu.Lock()
	done, running := o.inFlight[txID]
	o.mu.Unlock()
	if running {
		select {
		case <-done:
		case <-ctx.Done():
			return model.BridgeTransaction{}, clierr.Wrap(clierr.CodeTimeout, "waiting for bridge to finish", ctx.Err())
		}
	}
	tx, err := o.store.Get(txID)
	if err != nil {
		return model.BridgeTransaction{}, err
	}
	if !tx.Status.Terminal() {
		return tx, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("transaction %s is not being driven by this process", txID))
	}
	return tx, nil
}

// ReconcileOrphans fails records left non-terminal by an earlier process.
// Call it once at startup before submitting.
func (o *Orchestrator) ReconcileOrphans(ctx context.Context) int {
	o.mu.Lock()
	running := make(map[string]bool, len(o.inFlight))
	for txID := range o.inFlight {
		running[txID] = true
	}
	o.mu.Unlock()

	n := 0
	for _, tx := range o.store.All() {
		if tx.Status.Terminal() || running[tx.ID] {
			continue
		}
		tx.Status = model.StatusFailed
		tx.FailureReason = "interrupted: the process driving this transfer exited before it finished"
		tx.UpdatedAt = time.Now().UTC()
		if err := o.store.Update(ctx, tx); err != nil {
			o.log.Error().Err(err).Str("tx_id", tx.ID).Msg("orphan not reconciled")
			continue
		}
		n++
	}
	if n > 0 {
		o.log.Warn().Int("count", n).Msg("reconciled interrupted transfers")
	}
	return n
}

// Shutdown stops accepting submissions and waits for in-flight transfers to
// reach and persist a terminal state. If ctx ends first, remaining phases are
// aborted and recorded as FAILED before Shutdown returns.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		o.abort()
	case <-ctx.Done():
		o.abort()
		<-finished
		o.closeEvents()
		return clierr.Wrap(clierr.CodeTimeout, "in-flight transfers aborted at shutdown", ctx.Err())
	}

	o.closeEvents()
	select {
	case <-o.eventsDone:
		return nil
	case <-ctx.Done():
		return clierr.Wrap(clierr.CodeTimeout, "status events still pending at shutdown", ctx.Err())
	}
}
