package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

// ChainID is a registry-validated symbolic chain identifier.
type ChainID string

const (
	Ethereum  ChainID = "ethereum"
	Polygon   ChainID = "polygon"
	BSC       ChainID = "bsc"
	Arbitrum  ChainID = "arbitrum"
	Optimism  ChainID = "optimism"
	Base      ChainID = "base"
	Avalanche ChainID = "avalanche"
	Solana    ChainID = "solana"
)

// DestinationChain is the fixed target of every bridge operation.
const DestinationChain = Solana

func (c ChainID) String() string { return string(c) }

type ChainDescriptor struct {
	ID           ChainID `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	RPCURL       string  `json:"rpc_url" yaml:"rpc_url"`
	NetworkID    int64   `json:"network_id" yaml:"network_id"`
	ExplorerURL  string  `json:"explorer_url" yaml:"explorer_url"`
	Testnet      bool    `json:"testnet" yaml:"testnet"`
	NativeSymbol string  `json:"native_symbol" yaml:"native_symbol"`
}

// IsEVM reports whether the chain uses EVM network ids (0 marks non-account-model chains).
func (c ChainDescriptor) IsEVM() bool {
	return c.NetworkID > 0
}

// CAIP2 returns the CAIP-2 identifier of the chain.
func (c ChainDescriptor) CAIP2() string {
	if c.IsEVM() {
		return fmt.Sprintf("eip155:%d", c.NetworkID)
	}
	if c.ID == Solana {
		return "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	}
	return string(c.ID)
}

var chains = map[ChainID]ChainDescriptor{
	Ethereum: {
		ID:           Ethereum,
		Name:         "Ethereum",
		RPCURL:       "https://eth.llamarpc.com",
		NetworkID:    1,
		ExplorerURL:  "https://etherscan.io",
		NativeSymbol: "ETH",
	},
	Polygon: {
		ID:           Polygon,
		Name:         "Polygon",
		RPCURL:       "https://polygon-rpc.com",
		NetworkID:    137,
		ExplorerURL:  "https://polygonscan.com",
		NativeSymbol: "MATIC",
	},
	BSC: {
		ID:           BSC,
		Name:         "BNB Smart Chain",
		RPCURL:       "https://bsc-dataseed.binance.org",
		NetworkID:    56,
		ExplorerURL:  "https://bscscan.com",
		NativeSymbol: "BNB",
	},
	Arbitrum: {
		ID:           Arbitrum,
		Name:         "Arbitrum One",
		RPCURL:       "https://arb1.arbitrum.io/rpc",
		NetworkID:    42161,
		ExplorerURL:  "https://arbiscan.io",
		NativeSymbol: "ETH",
	},
	Optimism: {
		ID:           Optimism,
		Name:         "Optimism",
		RPCURL:       "https://mainnet.optimism.io",
		NetworkID:    10,
		ExplorerURL:  "https://optimistic.etherscan.io",
		NativeSymbol: "ETH",
	},
	Base: {
		ID:           Base,
		Name:         "Base",
		RPCURL:       "https://mainnet.base.org",
		NetworkID:    8453,
		ExplorerURL:  "https://basescan.org",
		NativeSymbol: "ETH",
	},
	Avalanche: {
		ID:           Avalanche,
		Name:         "Avalanche C-Chain",
		RPCURL:       "https://api.avax.network/ext/bc/C/rpc",
		NetworkID:    43114,
		ExplorerURL:  "https://snowtrace.io",
		NativeSymbol: "AVAX",
	},
	Solana: {
		ID:           Solana,
		Name:         "Solana",
		RPCURL:       "https://api.mainnet-beta.solana.com",
		NetworkID:    0,
		ExplorerURL:  "https://solscan.io",
		NativeSymbol: "SOL",
	},
}

// Colloquial names users type for chains.
var chainSynonyms = map[string]ChainID{
	"ethereum":       Ethereum,
	"eth":            Ethereum,
	"ether":          Ethereum,
	"mainnet":        Ethereum,
	"polygon":        Polygon,
	"matic":          Polygon,
	"pol":            Polygon,
	"poly":           Polygon,
	"bsc":            BSC,
	"bnb":            BSC,
	"binance":        BSC,
	"arbitrum":       Arbitrum,
	"arb":            Arbitrum,
	"optimism":       Optimism,
	"op":             Optimism,
	"base":           Base,
	"avalanche":      Avalanche,
	"avax":           Avalanche,
	"solana":         Solana,
	"sol":            Solana,
	"solana-mainnet": Solana,
}

var chainByNetworkID = func() map[int64]ChainID {
	out := make(map[int64]ChainID, len(chains))
	for id, chain := range chains {
		if chain.IsEVM() {
			out[chain.NetworkID] = id
		}
	}
	return out
}()

// ListChains returns every supported chain ordered by id.
func ListChains() []ChainDescriptor {
	out := make([]ChainDescriptor, 0, len(chains))
	for _, chain := range chains {
		out = append(out, chain)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Chain returns the descriptor for a canonical chain id.
func Chain(id ChainID) (ChainDescriptor, error) {
	chain, ok := chains[id]
	if !ok {
		return ChainDescriptor{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("unknown chain: %s", id))
	}
	return chain, nil
}

// Destination returns the descriptor of the fixed destination chain.
func Destination() ChainDescriptor {
	return chains[DestinationChain]
}

// ParseChain resolves a canonical id, a colloquial name, a numeric network id
// or a CAIP-2 identifier to a supported chain.
func ParseChain(input string) (ChainDescriptor, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return ChainDescriptor{}, clierr.New(clierr.CodeUsage, "chain is required")
	}
	if id, ok := chainSynonyms[norm]; ok {
		return chains[id], nil
	}
	if rest, ok := strings.CutPrefix(norm, "eip155:"); ok {
		norm = rest
	}
	if n, err := strconv.ParseInt(norm, 10, 64); err == nil {
		if chain, ok := ChainByNetworkID(n); ok {
			return chain, nil
		}
	}
	for _, chain := range chains {
		if strings.EqualFold(chain.CAIP2(), strings.TrimSpace(input)) {
			return chain, nil
		}
	}
	return ChainDescriptor{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("unsupported chain: %s", input))
}

// CanonicalChain maps a colloquial chain name to its canonical id without
// returning an error; ok is false for unknown names.
func CanonicalChain(name string) (ChainID, bool) {
	chain, err := ParseChain(name)
	if err != nil {
		return "", false
	}
	return chain.ID, true
}

// ChainByName resolves a canonical id or a colloquial name only. Numeric
// network ids and CAIP-2 identifiers are not names and never match.
func ChainByName(name string) (ChainDescriptor, bool) {
	id, ok := chainSynonyms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ChainDescriptor{}, false
	}
	return chains[id], true
}

// ChainByNetworkID returns the EVM chain registered for a numeric network id.
func ChainByNetworkID(networkID int64) (ChainDescriptor, bool) {
	id, ok := chainByNetworkID[networkID]
	if !ok {
		return ChainDescriptor{}, false
	}
	return chains[id], true
}

// ResolveRPCURL prefers an explicit override, then the registry default.
func ResolveRPCURL(override string, id ChainID) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	chain, err := Chain(id)
	if err != nil {
		return "", err
	}
	if chain.RPCURL == "" {
		return "", fmt.Errorf("no default rpc configured for chain %s; provide an rpc override", id)
	}
	return chain.RPCURL, nil
}

// ExplorerTxURL links a transaction hash on the chain's explorer.
func ExplorerTxURL(id ChainID, txHash string) string {
	chain, ok := chains[id]
	if !ok || strings.TrimSpace(txHash) == "" {
		return ""
	}
	return strings.TrimSuffix(chain.ExplorerURL, "/") + "/tx/" + strings.TrimSpace(txHash)
}
