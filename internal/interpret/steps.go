package interpret

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// Steps returns the user-facing checklist for instr. Missing fields are
// rendered as bracketed placeholders.
func Steps(instr model.BridgeInstruction) []string {
	chain := displayChain(instr.SourceChain, "[source chain]")
	dest := displayChain(instr.DestinationChain, "")
	if dest == "" {
		dest = registry.Destination().Name
	}
	token := strings.ToUpper(strings.TrimSpace(instr.Token))
	if token == "" {
		token = "[token]"
	}
	amount := strings.TrimSpace(instr.Amount)
	if amount == "" {
		amount = "[amount]"
	}
	return []string{
		fmt.Sprintf("Connect your wallet and switch it to %s", chain),
		fmt.Sprintf("Approve the bridge to spend %s %s on %s", amount, token, chain),
		fmt.Sprintf("Lock %s %s on %s and wait for source chain finality", amount, token, chain),
		fmt.Sprintf("Wait for the relayer attestation to reach %s", dest),
		fmt.Sprintf("Receive %s %s on %s once the destination transaction confirms", amount, token, dest),
	}
}

func displayChain(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	if desc, err := registry.ParseChain(v); err == nil {
		return desc.Name
	}
	return v
}
