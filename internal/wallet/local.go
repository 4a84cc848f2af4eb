package wallet

import (
	"context"
	"sync"

	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet/signer"
)

type RequestKind string

const (
	RequestAccounts RequestKind = "request_accounts"
	RequestSwitch   RequestKind = "switch_chain"
	RequestAddChain RequestKind = "add_chain"
)

type Request struct {
	Kind  RequestKind
	Chain registry.ChainID
}

// Approver stands in for the user confirming a wallet prompt.
type Approver func(ctx context.Context, req Request) bool

func AutoApprove(context.Context, Request) bool { return true }

func DenyAll(context.Context, Request) bool { return false }

// LocalProvider is a key-backed wallet living in this process. It knows a
// set of EVM networks and starts on one of them.
type LocalProvider struct {
	signer  signer.Signer
	approve Approver

	mu      sync.Mutex
	current registry.ChainID
	known   map[registry.ChainID]bool
}

func NewLocalProvider(s signer.Signer, approve Approver, known ...registry.ChainID) *LocalProvider {
	if approve == nil {
		approve = DenyAll
	}
	if len(known) == 0 {
		known = []registry.ChainID{registry.Ethereum}
	}
	p := &LocalProvider{signer: s, approve: approve, current: known[0], known: map[registry.ChainID]bool{}}
	for _, id := range known {
		p.known[id] = true
	}
	return p
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Signer() signer.Signer { return p.signer }

func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	if p.signer == nil {
		return nil, ErrNoProvider
	}
	if err := p.confirm(ctx, Request{Kind: RequestAccounts}); err != nil {
		return nil, err
	}
	return []string{p.signer.Address().Hex()}, nil
}

func (p *LocalProvider) CurrentChain(ctx context.Context) (registry.ChainID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *LocalProvider) RequestChainSwitch(ctx context.Context, chain registry.ChainID) error {
	desc, err := registry.Chain(chain)
	if err != nil || !desc.IsEVM() {
		return ErrUnsupportedChain
	}
	p.mu.Lock()
	known := p.known[chain]
	p.mu.Unlock()
	if !known {
		return ErrUnknownNetwork
	}
	if err := p.confirm(ctx, Request{Kind: RequestSwitch, Chain: chain}); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = chain
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) RequestAddChain(ctx context.Context, chain registry.ChainDescriptor) error {
	if !chain.IsEVM() {
		return ErrUnsupportedChain
	}
	if err := p.confirm(ctx, Request{Kind: RequestAddChain, Chain: chain.ID}); err != nil {
		return err
	}
	p.mu.Lock()
	p.known[chain.ID] = true
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) confirm(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.approve(ctx, req) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrUserRejected
	}
	return nil
}
