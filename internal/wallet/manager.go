package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet/signer"
)

// Session is one connected address on one active chain.
type Session struct {
	Address   string
	ChainID   registry.ChainID
	NetworkID int64
	Provider  string
	Signer    signer.Signer
}

func (s Session) Model() model.WalletSession {
	return model.WalletSession{
		Address:       s.Address,
		ActiveChainID: string(s.ChainID),
		NetworkID:     s.NetworkID,
		Provider:      s.Provider,
	}
}

// Manager owns the process-wide wallet session. Only Manager writes it.
type Manager struct {
	provider Provider
	log      zerolog.Logger

	// opMu serializes provider round trips; mu guards session reads and writes.
	opMu       sync.Mutex
	mu         sync.RWMutex
	session    *Session
	generation uint64
}

func NewManager(provider Provider, log zerolog.Logger) *Manager {
	return &Manager{provider: provider, log: log.With().Str("component", "wallet").Logger()}
}

// Connect authorizes the wallet and moves it to chain, adding the network to
// the wallet first when the wallet does not know it.
func (m *Manager) Connect(ctx context.Context, chain string) (Session, error) {
	desc, err := resolveChain(chain)
	if err != nil {
		return Session{}, err
	}
	if m.provider == nil {
		return Session{}, clierr.New(clierr.CodeNoProvider, "no wallet provider available")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return Session{}, mapProviderError("connection", err)
	}
	address := ""
	for _, a := range accounts {
		if common.IsHexAddress(a) {
			address = common.HexToAddress(a).Hex()
			break
		}
	}
	if address == "" {
		return Session{}, clierr.New(clierr.CodeRejected, "wallet returned no usable account")
	}
	if err := proveControl(m.provider.Signer(), address, desc); err != nil {
		return Session{}, err
	}

	if err := m.moveToChain(ctx, desc); err != nil {
		return Session{}, err
	}

	s := Session{
		Address:   address,
		ChainID:   desc.ID,
		NetworkID: desc.NetworkID,
		Provider:  m.provider.Name(),
		Signer:    m.provider.Signer(),
	}
	m.mu.Lock()
	m.session = &s
	m.generation++
	m.mu.Unlock()
	m.log.Info().Str("address", address).Str("chain", string(desc.ID)).Msg("wallet connected")
	return s, nil
}

// SwitchChain moves the connected wallet to chain.
func (m *Manager) SwitchChain(ctx context.Context, chain string) (Session, error) {
	desc, err := resolveChain(chain)
	if err != nil {
		return Session{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	if m.session == nil {
		m.mu.RUnlock()
		return Session{}, clierr.New(clierr.CodeSession, "no wallet connected; connect before switching chains")
	}
	generation := m.generation
	m.mu.RUnlock()

	if err := m.moveToChain(ctx, desc); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.generation != generation {
		return Session{}, clierr.New(clierr.CodeSession, "wallet session ended during chain switch")
	}
	updated := *m.session
	updated.ChainID = desc.ID
	updated.NetworkID = desc.NetworkID
	m.session = &updated
	m.generation++
	m.log.Info().Str("address", updated.Address).Str("chain", string(desc.ID)).Msg("wallet switched chain")
	return updated, nil
}

// Disconnect clears the session. It is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	m.log.Info().Str("address", m.session.Address).Msg("wallet disconnected")
	m.session = nil
	m.generation++
}

func (m *Manager) CurrentSession() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

func (m *Manager) moveToChain(ctx context.Context, desc registry.ChainDescriptor) error {
	current, err := m.provider.CurrentChain(ctx)
	if err == nil && current == desc.ID {
		return nil
	}
	err = m.provider.RequestChainSwitch(ctx, desc.ID)
	if errors.Is(err, ErrUnknownNetwork) {
		m.log.Debug().Str("chain", string(desc.ID)).Msg("wallet does not know network; requesting add")
		if addErr := m.provider.RequestAddChain(ctx, desc); addErr != nil {
			return mapProviderError("add network", addErr)
		}
		err = m.provider.RequestChainSwitch(ctx, desc.ID)
	}
	if err != nil {
		return mapProviderError("network switch", err)
	}
	return nil
}

// proveControl has the session signer sign a statement naming address and
// chain, then checks the signature recovers to address.
func proveControl(s signer.Signer, address string, desc registry.ChainDescriptor) error {
	if s == nil {
		return clierr.New(clierr.CodeNoProvider, "wallet exposes no signer")
	}
	msg := []byte(fmt.Sprintf("bridge session for %s on %s (network %d)", address, desc.ID, desc.NetworkID))
	sig, err := s.SignMessage(msg)
	if err != nil {
		return clierr.Wrap(clierr.CodeNoProvider, "wallet could not sign session statement", err)
	}
	recovered, err := signer.RecoverMessageSigner(msg, sig)
	if err != nil {
		return clierr.Wrap(clierr.CodeNoProvider, "wallet session signature is invalid", err)
	}
	if recovered.Hex() != address {
		return clierr.New(clierr.CodeNoProvider, fmt.Sprintf("wallet signer %s does not control account %s", recovered.Hex(), address))
	}
	return nil
}

func resolveChain(chain string) (registry.ChainDescriptor, error) {
	desc, err := registry.ParseChain(chain)
	if err != nil {
		if clierr.CodeOf(err) == clierr.CodeNotFound {
			return registry.ChainDescriptor{}, clierr.Wrap(clierr.CodeUnsupported, fmt.Sprintf("unsupported chain %q", strings.TrimSpace(chain)), err)
		}
		return registry.ChainDescriptor{}, err
	}
	return desc, nil
}

func mapProviderError(op string, err error) error {
	switch {
	case errors.Is(err, ErrUserRejected):
		return clierr.Wrap(clierr.CodeRejected, op+" rejected", err)
	case errors.Is(err, ErrNoProvider):
		return clierr.Wrap(clierr.CodeNoProvider, "no wallet provider available", err)
	case errors.Is(err, ErrUnsupportedChain), errors.Is(err, ErrUnknownNetwork):
		return clierr.Wrap(clierr.CodeUnsupported, op+" failed", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return clierr.Wrap(clierr.CodeTimeout, op+" timed out waiting for wallet", err)
	default:
		return clierr.Wrap(clierr.CodeUnavailable, op+" failed", err)
	}
}
