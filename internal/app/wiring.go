package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ggonzalez94/bridgectl/internal/bridge"
	"github.com/ggonzalez94/bridgectl/internal/config"
	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/events"
	"github.com/ggonzalez94/bridgectl/internal/httpx"
	"github.com/ggonzalez94/bridgectl/internal/interpret"
	"github.com/ggonzalez94/bridgectl/internal/llm"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/storage"
	"github.com/ggonzalez94/bridgectl/internal/txlog"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
	"github.com/ggonzalez94/bridgectl/internal/wallet/signer"
)

const persistAttempts = 3

func (s *runtimeState) ensureMetrics() *metrics.Metrics {
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s.metrics
}

func (s *runtimeState) ensureKV(ctx context.Context) (storage.KV, error) {
	if s.kv != nil {
		return s.kv, nil
	}
	switch s.settings.StoreBackend {
	case config.StoreRedis:
		kv, err := storage.OpenRedis(ctx, s.settings.RedisAddr, "bridge")
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "open redis store", err)
		}
		s.kv = kv
	default:
		if err := os.MkdirAll(filepath.Dir(s.settings.StorePath), 0o755); err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "create store directory", err)
		}
		kv, err := storage.OpenSQLite(s.settings.StorePath, s.settings.StoreLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open sqlite store", err)
		}
		if err := kv.Prune(); err != nil {
			s.log.Debug().Err(err).Msg("prune expired store entries")
		}
		s.kv = kv
	}
	return s.kv, nil
}

func (s *runtimeState) ensureTxLog(ctx context.Context) (*txlog.Store, error) {
	if s.txlog != nil {
		return s.txlog, nil
	}
	kv, err := s.ensureKV(ctx)
	if err != nil {
		return nil, err
	}
	store, err := txlog.Open(ctx, kv, s.settings.StoreKey, txlog.Options{
		Attempts: persistAttempts,
		Logger:   s.log,
		Metrics:  s.ensureMetrics(),
	})
	if err != nil {
		return nil, err
	}
	s.txlog = store
	return store, nil
}

// ensureInterpreter wires the remote tier only when it is enabled and an API
// key is configured; the local parser always backs it.
func (s *runtimeState) ensureInterpreter(ctx context.Context) *interpret.Interpreter {
	if s.interpreter != nil {
		return s.interpreter
	}
	opts := interpret.Options{
		RemoteTimeout: s.settings.Timeout,
		CacheTTL:      s.settings.InterpretCacheTTL,
		Logger:        s.log,
		Metrics:       s.ensureMetrics(),
	}
	if s.settings.RemoteInterpreter && strings.TrimSpace(s.settings.LLMAPIKey) != "" {
		client := httpx.New(s.settings.Timeout, s.settings.Retries, httpx.WithRateLimit(s.settings.LLMRate, s.settings.LLMBurst))
		opts.Remote = llm.New(client, llm.Config{
			Endpoint: s.settings.LLMEndpoint,
			Model:    s.settings.LLMModel,
			APIKey:   s.settings.LLMAPIKey,
		})
		if kv, err := s.ensureKV(ctx); err == nil {
			opts.Cache = kv
		} else {
			s.log.Warn().Err(err).Msg("interpretation cache disabled")
		}
	}
	s.interpreter = interpret.New(opts)
	return s.interpreter
}

func (s *runtimeState) ensureWallet() (*wallet.Manager, error) {
	if s.wallet != nil {
		return s.wallet, nil
	}
	key, err := signer.NewLocalSignerFromEnv(s.settings.KeySource)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeNoProvider, "load wallet key", err)
	}
	approve := s.approve
	if approve == nil {
		approve = wallet.DenyAll
	}
	s.wallet = wallet.NewManager(wallet.NewLocalProvider(key, approve), s.log)
	return s.wallet, nil
}

func (s *runtimeState) ensurePublisher() events.Publisher {
	if s.publisher != nil {
		return s.publisher
	}
	s.publisher = events.Nop{}
	if len(s.settings.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(s.settings.KafkaBrokers, s.settings.KafkaTopic, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("status events disabled")
		} else {
			s.publisher = pub
		}
	}
	return s.publisher
}

func (s *runtimeState) ensureOrchestrator(ctx context.Context) (*bridge.Orchestrator, error) {
	if s.orchestrator != nil {
		return s.orchestrator, nil
	}
	store, err := s.ensureTxLog(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := s.ensureWallet()
	if err != nil {
		return nil, err
	}
	waiter, err := s.buildWaiter()
	if err != nil {
		return nil, err
	}
	s.orchestrator = bridge.New(store, manager, bridge.Options{
		Waiter:       waiter,
		PhaseTimeout: s.settings.PhaseTimeout,
		Logger:       s.log,
		Metrics:      s.ensureMetrics(),
		Publisher:    s.ensurePublisher(),
	})
	return s.orchestrator, nil
}

// buildWaiter picks how phases are observed: simulated delays, or the
// source chain receipt followed by the relay status API.
func (s *runtimeState) buildWaiter() (bridge.PhaseWaiter, error) {
	switch s.settings.WaiterMode {
	case config.WaiterLive:
		client := httpx.New(s.settings.Timeout, s.settings.Retries)
		settlement, err := bridge.NewSettlementWaiter(client, s.settings.SettlementProvider, s.settings.SettlementEndpoint, s.settings.PollInterval)
		if err != nil {
			return nil, err
		}
		return bridge.PhaseRouter{Waiters: map[bridge.Phase]bridge.PhaseWaiter{
			bridge.PhaseSourceFinality: bridge.NewReceiptWaiter(s.settings.RPCOverrides, s.settings.PollInterval, s.settings.Confirmations),
			bridge.PhaseRelay:          settlement,
			bridge.PhaseDestination:    settlement,
		}}, nil
	case config.WaiterSimulated, "":
		return bridge.SimulatedWaiter{Delay: s.settings.PhaseDelay}, nil
	default:
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown waiter mode %q", s.settings.WaiterMode))
	}
}

// close waits for in-flight transfers before releasing the store they
// persist to. Each transfer is bounded by its phase timeouts.
func (s *runtimeState) close() {
	if s.orchestrator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*s.settings.PhaseTimeout+s.settings.Timeout)
		if err := s.orchestrator.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("in-flight transfers aborted on exit")
		}
		cancel()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.kv != nil {
		_ = s.kv.Close()
	}
}
