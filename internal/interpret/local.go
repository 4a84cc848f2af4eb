package interpret

import (
	"regexp"
	"strings"

	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

const (
	FieldSourceChain = "sourceChain"
	FieldToken       = "token"
	FieldAmount      = "amount"
)

var (
	chainPattern  = regexp.MustCompile(`(?i)\b(?:from|on|in)\s+([a-z0-9][a-z0-9:-]*)`)
	amountPattern = regexp.MustCompile(`(?i)\b(?:bridge|send|transfer|move)\s+(\d+(?:\.\d+)?|\.\d+)\s*([a-z][a-z0-9]*)\b`)
)

var tokenSynonyms = map[string]string{
	"ether":  "ETH",
	"eth":    "ETH",
	"weth":   "ETH",
	"pol":    "MATIC",
	"tether": "USDT",
	"btc":    "WBTC",
	"usd":    "USDC",
}

// ParseLocal extracts an instruction with fixed patterns. ok is false unless
// both a chain and an amount/token pair were found; missing names the
// fields that could not be extracted.
func ParseLocal(text string) (instr model.BridgeInstruction, missing []string, ok bool) {
	instr.DestinationChain = string(registry.DestinationChain)

	for _, m := range chainPattern.FindAllStringSubmatch(text, -1) {
		if chain, found := registry.ChainByName(strings.TrimRight(m[1], ":-")); found {
			instr.SourceChain = string(chain.ID)
			break
		}
	}
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		instr.Amount = normalizeAmount(m[1])
		instr.Token = normalizeToken(m[2])
	}

	if instr.SourceChain == "" {
		missing = append(missing, FieldSourceChain)
	}
	if instr.Token == "" {
		missing = append(missing, FieldToken)
	}
	if instr.Amount == "" {
		missing = append(missing, FieldAmount)
	}
	return instr, missing, len(missing) == 0
}

func normalizeToken(raw string) string {
	clean := strings.ToLower(strings.TrimSpace(raw))
	if sym, ok := tokenSynonyms[clean]; ok {
		return sym
	}
	return strings.ToUpper(clean)
}

func normalizeAmount(raw string) string {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}
	return clean
}
