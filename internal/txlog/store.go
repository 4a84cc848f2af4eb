package txlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/storage"
)

const DefaultKey = "bridge_transactions"

type Options struct {
	// Attempts bounds persistence writes per mutation; values below 2 are raised to 2.
	Attempts int
	Backoff  time.Duration
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Store is the transaction log. The in-memory list is authoritative for
// reads; every mutation rewrites the whole serialized list under one key.
type Store struct {
	kv  storage.KV
	key string

	mu    sync.RWMutex
	txs   []model.BridgeTransaction
	index map[string]int

	writeMu  sync.Mutex
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// Open reads the persisted list once. A nil kv yields a memory-only log.
func Open(ctx context.Context, kv storage.KV, key string, opts Options) (*Store, error) {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	if opts.Attempts < 2 {
		opts.Attempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	s := &Store{
		kv:       kv,
		key:      key,
		index:    map[string]int{},
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		log:      opts.Logger.With().Str("component", "txlog").Logger(),
		metrics:  opts.Metrics,
	}
	if kv == nil {
		return s, nil
	}
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodePersistence, "load transaction log", err)
	}
	if !ok || len(raw) == 0 {
		return s, nil
	}
	var loaded []model.BridgeTransaction
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return nil, clierr.Wrap(clierr.CodePersistence, "decode transaction log", err)
	}
	for _, tx := range loaded {
		if tx.ID == "" {
			continue
		}
		if i, dup := s.index[tx.ID]; dup {
			s.txs[i] = tx
			continue
		}
		s.index[tx.ID] = len(s.txs)
		s.txs = append(s.txs, tx)
	}
	s.log.Debug().Int("count", len(s.txs)).Msg("loaded transaction log")
	return s, nil
}

func (s *Store) Append(ctx context.Context, tx model.BridgeTransaction) error {
	if strings.TrimSpace(tx.ID) == "" {
		return clierr.New(clierr.CodeInternal, "append transaction: missing id")
	}
	s.mu.Lock()
	if _, exists := s.index[tx.ID]; exists {
		s.mu.Unlock()
		return clierr.New(clierr.CodeInternal, fmt.Sprintf("append transaction: duplicate id %s", tx.ID))
	}
	s.index[tx.ID] = len(s.txs)
	s.txs = append(s.txs, tx)
	s.mu.Unlock()
	return s.persist(ctx, tx.ID)
}

// Update overwrites the record with the same id.
func (s *Store) Update(ctx context.Context, tx model.BridgeTransaction) error {
	s.mu.Lock()
	i, ok := s.index[tx.ID]
	if !ok {
		s.mu.Unlock()
		return clierr.New(clierr.CodeNotFound, fmt.Sprintf("transaction not found: %s", tx.ID))
	}
	s.txs[i] = tx
	s.mu.Unlock()
	return s.persist(ctx, tx.ID)
}

func (s *Store) Get(id string) (model.BridgeTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[strings.TrimSpace(id)]
	if !ok {
		return model.BridgeTransaction{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("transaction not found: %s", id))
	}
	return s.txs[i], nil
}

// All returns a snapshot ordered newest first.
func (s *Store) All() []model.BridgeTransaction {
	s.mu.RLock()
	out := make([]model.BridgeTransaction, len(s.txs))
	copy(out, s.txs)
	s.mu.RUnlock()

	// Reverse insertion order first so equal timestamps keep newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

func (s *Store) snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.txs)
}

// persist writes the current list. Writers are serialized and each one
// snapshots under the lock, so the last write always carries every mutation
// made before it.
func (s *Store) persist(ctx context.Context, txID string) error {
	if s.kv == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	payload, err := s.snapshot()
	if err != nil {
		return clierr.Wrap(clierr.CodePersistence, "encode transaction log", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		writeCtx := ctx
		if ctx.Err() != nil {
			// The caller may have gone away; the log still has to reach disk.
			writeCtx = context.WithoutCancel(ctx)
		}
		if lastErr = s.kv.Put(writeCtx, s.key, payload, 0); lastErr == nil {
			return nil
		}
		s.log.Warn().Err(lastErr).Str("tx_id", txID).Int("attempt", attempt).Msg("transaction log write failed")
		if attempt < s.attempts {
			time.Sleep(time.Duration(attempt) * s.backoff)
		}
	}
	s.metrics.PersistError()
	s.log.Error().Err(lastErr).Str("tx_id", txID).Msg("transaction log write abandoned")
	return clierr.Wrap(clierr.CodePersistence, "persist transaction log", lastErr)
}
