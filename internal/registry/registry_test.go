package registry

import (
	"testing"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

func TestParseChainVariants(t *testing.T) {
	cases := map[string]ChainID{
		"ethereum":    Ethereum,
		"ETH":         Ethereum,
		"matic":       Polygon,
		" Polygon ":   Polygon,
		"137":         Polygon,
		"eip155:8453": Base,
		"avax":        Avalanche,
		"sol":         Solana,
	}
	for input, want := range cases {
		chain, err := ParseChain(input)
		if err != nil {
			t.Fatalf("ParseChain(%q) failed: %v", input, err)
		}
		if chain.ID != want {
			t.Fatalf("ParseChain(%q) = %s, want %s", input, chain.ID, want)
		}
	}
}

func TestParseChainUnknown(t *testing.T) {
	_, err := ParseChain("narnia")
	if err == nil {
		t.Fatal("expected unknown chain error")
	}
	if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
	if _, err := ParseChain("999999"); err == nil {
		t.Fatal("expected unknown network id error")
	}
}

func TestListChainsIncludesDestination(t *testing.T) {
	all := ListChains()
	if len(all) != 8 {
		t.Fatalf("expected 8 chains, got %d", len(all))
	}
	found := false
	for _, c := range all {
		if c.ID == DestinationChain {
			found = true
			if c.NetworkID != 0 || c.IsEVM() {
				t.Fatalf("destination should be a non-EVM chain: %+v", c)
			}
		}
	}
	if !found {
		t.Fatal("destination chain missing from registry")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("chains not sorted: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func TestDescriptorFor(t *testing.T) {
	usdc, err := DescriptorFor(Polygon, "usdc")
	if err != nil {
		t.Fatalf("DescriptorFor(polygon, usdc) failed: %v", err)
	}
	if usdc.Decimals != 6 || usdc.Symbol != "USDC" {
		t.Fatalf("unexpected descriptor: %+v", usdc)
	}
	if usdc.MinUnit() != "0.000001" {
		t.Fatalf("unexpected min unit: %s", usdc.MinUnit())
	}

	eth, err := DescriptorFor(Ethereum, "ETH")
	if err != nil {
		t.Fatalf("DescriptorFor(ethereum, ETH) failed: %v", err)
	}
	if !eth.IsNativeOn(Ethereum) || eth.IsNativeOn(Polygon) {
		t.Fatalf("unexpected native flags: %+v", eth.Addresses)
	}

	if _, err := DescriptorFor(BSC, "USDC"); err == nil {
		t.Fatal("expected USDC to be unavailable on bsc")
	}
	if _, err := DescriptorFor("narnia", "USDC"); err == nil {
		t.Fatal("expected unknown chain error")
	}
}

func TestDescriptorCopiesAreIsolated(t *testing.T) {
	first, _ := DescriptorFor(Ethereum, "USDC")
	first.Addresses[Ethereum] = "mutated"
	second, _ := DescriptorFor(Ethereum, "USDC")
	if second.Addresses[Ethereum] == "mutated" {
		t.Fatal("registry leaked internal map to caller")
	}
}

func TestTokensFor(t *testing.T) {
	list, err := TokensFor(BSC)
	if err != nil {
		t.Fatalf("TokensFor(bsc) failed: %v", err)
	}
	if len(list) != 2 || list[0].Symbol != "BNB" || list[1].Symbol != "ETH" {
		t.Fatalf("unexpected bsc tokens: %+v", list)
	}
	if _, err := TokensFor("narnia"); err == nil {
		t.Fatal("expected unknown chain error")
	}
}

func TestExplorerTxURL(t *testing.T) {
	if got := ExplorerTxURL(Polygon, "0xabc"); got != "https://polygonscan.com/tx/0xabc" {
		t.Fatalf("unexpected explorer url: %s", got)
	}
	if got := ExplorerTxURL(Polygon, ""); got != "" {
		t.Fatalf("expected empty url for empty hash, got %s", got)
	}
}

func TestIsAllowedStatusEndpoint(t *testing.T) {
	if !IsAllowedStatusEndpoint("lifi", "") {
		t.Fatal("expected empty endpoint to be allowed")
	}
	if !IsAllowedStatusEndpoint("lifi", "https://li.quest:443/v1/status/") {
		t.Fatal("expected canonical endpoint with explicit port to be allowed")
	}
	if IsAllowedStatusEndpoint("lifi", WormholeStatusURL) {
		t.Fatal("did not expect wormhole endpoint for lifi")
	}
	if IsAllowedStatusEndpoint("lifi", "http://li.quest/v1/status") {
		t.Fatal("did not expect plain http for non-loopback host")
	}
	if !IsAllowedStatusEndpoint("wormhole", "http://127.0.0.1:9000/ops") {
		t.Fatal("expected loopback endpoint to be allowed")
	}
}

func TestInfoConversions(t *testing.T) {
	sol := Destination().Info()
	if !sol.Destination || sol.CAIP2 != "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp" {
		t.Fatalf("unexpected destination info: %+v", sol)
	}
	eth, _ := DescriptorFor(Ethereum, "ETH")
	info := eth.Info(Ethereum)
	if !info.Native || info.Address != NativeAddress || info.ChainID != "ethereum" {
		t.Fatalf("unexpected token info: %+v", info)
	}
	if url, err := DefaultRPCURL(Polygon); err != nil || url != "https://polygon-rpc.com" {
		t.Fatalf("unexpected default rpc: %s err=%v", url, err)
	}
}

func TestChainByNameRejectsNumericIDs(t *testing.T) {
	if c, ok := ChainByName(" Matic "); !ok || c.ID != Polygon {
		t.Fatalf("expected polygon for matic, got %+v ok=%v", c, ok)
	}
	for _, input := range []string{"137", "1", "10", "eip155:1", "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", ""} {
		if _, ok := ChainByName(input); ok {
			t.Fatalf("ChainByName(%q) should not match", input)
		}
	}
	if c, ok := ChainByNetworkID(10); !ok || c.ID != Optimism {
		t.Fatalf("expected optimism for network 10, got %+v", c)
	}
}
