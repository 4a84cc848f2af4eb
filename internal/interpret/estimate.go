package interpret

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ggonzalez94/bridgectl/internal/id"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// BridgeFeeBps is the flat bridge fee charged on the transferred amount.
const BridgeFeeBps = 30

const placeholder = "unknown"

type chainCost struct {
	gasFee string
	time   string
}

var chainCosts = map[registry.ChainID]chainCost{
	registry.Ethereum:  {gasFee: "0.0025", time: "15-20 minutes"},
	registry.Polygon:   {gasFee: "0.02", time: "20-30 minutes"},
	registry.BSC:       {gasFee: "0.0005", time: "5-10 minutes"},
	registry.Arbitrum:  {gasFee: "0.0002", time: "10-15 minutes"},
	registry.Optimism:  {gasFee: "0.0001", time: "10-15 minutes"},
	registry.Base:      {gasFee: "0.0001", time: "10-15 minutes"},
	registry.Avalanche: {gasFee: "0.01", time: "5-10 minutes"},
}

// Estimate is table driven by source chain. Missing or unknown fields yield
// placeholder values rather than an error.
func Estimate(instr model.BridgeInstruction) model.BridgeEstimate {
	out := model.BridgeEstimate{
		SourceChain:   orPlaceholder(instr.SourceChain),
		Token:         orPlaceholder(strings.ToUpper(instr.Token)),
		Amount:        orPlaceholder(instr.Amount),
		EstimatedTime: placeholder,
		GasFee:        placeholder,
		BridgeFee:     placeholder,
		BridgeFeeBps:  BridgeFeeBps,
	}

	chainID, chainOK := registry.CanonicalChain(instr.SourceChain)
	if chainOK {
		if cost, ok := chainCosts[chainID]; ok {
			out.SourceChain = string(chainID)
			out.EstimatedTime = cost.time
			out.GasFee = cost.gasFee
			out.GasFeeSymbol = registryNativeSymbol(chainID)
		}
	}

	decimals := 6
	if chainOK {
		if tok, err := registry.DescriptorFor(chainID, instr.Token); err == nil {
			decimals = tok.Decimals
		}
	}
	if amt, err := id.ParseAmount(instr.Amount, decimals); err == nil {
		fee := new(big.Rat).Mul(amt.Rat(), big.NewRat(BridgeFeeBps, 10_000))
		out.BridgeFee = trimRat(fee, decimals)
	}

	out.TotalFeeSummary = fmt.Sprintf("%s %s gas + %s %s bridge fee (%.2f%%)",
		out.GasFee, orPlaceholder(out.GasFeeSymbol), out.BridgeFee, out.Token, float64(BridgeFeeBps)/100)
	return out
}

func registryNativeSymbol(chain registry.ChainID) string {
	desc, err := registry.Chain(chain)
	if err != nil {
		return ""
	}
	return desc.NativeSymbol
}

func trimRat(r *big.Rat, decimals int) string {
	s := r.FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
