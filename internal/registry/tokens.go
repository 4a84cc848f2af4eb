package registry

import (
	"fmt"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

// NativeAddress marks a token that is the chain's native currency.
const NativeAddress = "native"

type TokenDescriptor struct {
	Symbol    string             `json:"symbol"`
	Name      string             `json:"name"`
	Decimals  int                `json:"decimals"`
	Native    bool               `json:"native"`
	Addresses map[ChainID]string `json:"addresses"`
}

// AddressOn returns the on-chain identifier of the token, or false when the
// token is not available on the chain.
func (t TokenDescriptor) AddressOn(chain ChainID) (string, bool) {
	addr, ok := t.Addresses[chain]
	return addr, ok
}

// IsNativeOn reports whether the token is the native currency of chain.
func (t TokenDescriptor) IsNativeOn(chain ChainID) bool {
	return t.Addresses[chain] == NativeAddress
}

// MinUnit is the smallest representable amount, 1 * 10^-decimals, as a decimal string.
func (t TokenDescriptor) MinUnit() string {
	if t.Decimals <= 0 {
		return "1"
	}
	return "0." + strings.Repeat("0", t.Decimals-1) + "1"
}

var tokens = []TokenDescriptor{
	{
		Symbol:   "ETH",
		Name:     "Ether",
		Decimals: 18,
		Native:   true,
		Addresses: map[ChainID]string{
			Ethereum:  NativeAddress,
			Arbitrum:  NativeAddress,
			Optimism:  NativeAddress,
			Base:      NativeAddress,
			Polygon:   "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
			BSC:       "0x2170Ed0880ac9A755fd29B2688956BD959F933F8",
			Avalanche: "0x49D5c2BdFfac6CE2BFdB6640F4F80f226bc10bAB",
			Solana:    "7vfCXTUXx5WJV5JADk17DUJ4ksgAUVVmDvMzh1Y9FP8",
		},
	},
	{
		Symbol:   "USDC",
		Name:     "USD Coin",
		Decimals: 6,
		Addresses: map[ChainID]string{
			Ethereum:  "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			Polygon:   "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359",
			Arbitrum:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			Optimism:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
			Base:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Avalanche: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			Solana:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		},
	},
	{
		Symbol:   "USDT",
		Name:     "Tether USD",
		Decimals: 6,
		Addresses: map[ChainID]string{
			Ethereum:  "0xdac17f958d2ee523a2206206994597c13d831ec7",
			Polygon:   "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
			Arbitrum:  "0xFd086bC7CD5C481DCC9C85ebe478A1C0b69FCbb9",
			Optimism:  "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58",
			Avalanche: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7",
			Solana:    "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
		},
	},
	{
		Symbol:   "MATIC",
		Name:     "Polygon",
		Decimals: 18,
		Native:   true,
		Addresses: map[ChainID]string{
			Polygon:  NativeAddress,
			Ethereum: "0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0",
		},
	},
	{
		Symbol:   "BNB",
		Name:     "BNB",
		Decimals: 18,
		Native:   true,
		Addresses: map[ChainID]string{
			BSC: NativeAddress,
		},
	},
	{
		Symbol:   "AVAX",
		Name:     "Avalanche",
		Decimals: 18,
		Native:   true,
		Addresses: map[ChainID]string{
			Avalanche: NativeAddress,
		},
	},
	{
		Symbol:   "WBTC",
		Name:     "Wrapped Bitcoin",
		Decimals: 8,
		Addresses: map[ChainID]string{
			Ethereum: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
			Polygon:  "0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6",
			Arbitrum: "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f",
			Optimism: "0x68f180fcCe6836688e9084f035309E29Bf0A2095",
		},
	},
	{
		Symbol:   "SOL",
		Name:     "Solana",
		Decimals: 9,
		Native:   true,
		Addresses: map[ChainID]string{
			Solana: NativeAddress,
		},
	},
}

// TokensFor lists tokens available on chain ordered by symbol. Unknown chains
// return NotFound; a known chain with no tokens returns an empty list.
func TokensFor(chain ChainID) ([]TokenDescriptor, error) {
	if _, err := Chain(chain); err != nil {
		return nil, err
	}
	out := make([]TokenDescriptor, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := t.Addresses[chain]; ok {
			out = append(out, copyToken(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// DescriptorFor returns the token with symbol on chain.
func DescriptorFor(chain ChainID, symbol string) (TokenDescriptor, error) {
	if _, err := Chain(chain); err != nil {
		return TokenDescriptor{}, err
	}
	norm := strings.ToUpper(strings.TrimSpace(symbol))
	if norm == "" {
		return TokenDescriptor{}, clierr.New(clierr.CodeUsage, "token symbol is required")
	}
	for _, t := range tokens {
		if t.Symbol != norm {
			continue
		}
		if _, ok := t.Addresses[chain]; !ok {
			break
		}
		return copyToken(t), nil
	}
	return TokenDescriptor{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("token %s is not supported on %s", norm, chain))
}

// KnownSymbol reports whether any chain lists symbol.
func KnownSymbol(symbol string) bool {
	norm := strings.ToUpper(strings.TrimSpace(symbol))
	for _, t := range tokens {
		if t.Symbol == norm {
			return true
		}
	}
	return false
}

func copyToken(t TokenDescriptor) TokenDescriptor {
	addrs := make(map[ChainID]string, len(t.Addresses))
	for k, v := range t.Addresses {
		addrs[k] = v
	}
	t.Addresses = addrs
	return t
}
