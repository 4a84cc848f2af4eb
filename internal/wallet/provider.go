package wallet

import (
	"context"
	"errors"

	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet/signer"
)

var (
	ErrUserRejected     = errors.New("wallet: request rejected by user")
	ErrUnknownNetwork   = errors.New("wallet: network unknown to wallet")
	ErrUnsupportedChain = errors.New("wallet: chain not supported by wallet")
	ErrNoProvider       = errors.New("wallet: no provider available")
)

// Provider is the out-of-process wallet. Every call may block on user
// interaction and may be rejected.
type Provider interface {
	Name() string
	RequestAccounts(ctx context.Context) ([]string, error)
	CurrentChain(ctx context.Context) (registry.ChainID, error)
	RequestChainSwitch(ctx context.Context, chain registry.ChainID) error
	RequestAddChain(ctx context.Context, chain registry.ChainDescriptor) error
	Signer() signer.Signer
}
