package bridge

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/id"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// Validated is an instruction checked against the registry.
type Validated struct {
	Instruction model.BridgeInstruction
	Source      registry.ChainDescriptor
	Token       registry.TokenDescriptor
	Amount      id.Amount
}

// Validate checks every field of instr regardless of where it came from and
// returns the canonical form. Failures carry CodeUsage.
func Validate(instr model.BridgeInstruction) (Validated, error) {
	var missing []string
	if strings.TrimSpace(instr.SourceChain) == "" {
		missing = append(missing, "sourceChain")
	}
	if strings.TrimSpace(instr.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(instr.Amount) == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return Validated{}, clierr.New(clierr.CodeUsage, "instruction is missing "+strings.Join(missing, ", "))
	}

	source, err := registry.ParseChain(instr.SourceChain)
	if err != nil {
		return Validated{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("unsupported source chain %q", instr.SourceChain), err)
	}
	dest := registry.Destination()
	if strings.TrimSpace(instr.DestinationChain) != "" {
		parsed, err := registry.ParseChain(instr.DestinationChain)
		if err != nil || parsed.ID != registry.DestinationChain {
			return Validated{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("destination must be %s", registry.DestinationChain))
		}
	}
	if source.ID == dest.ID {
		return Validated{}, clierr.New(clierr.CodeUsage, "source chain must differ from the destination chain")
	}

	token, err := registry.DescriptorFor(source.ID, instr.Token)
	if err != nil {
		return Validated{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("token %s is not supported on %s", strings.ToUpper(strings.TrimSpace(instr.Token)), source.ID), err)
	}
	amount, err := id.ParseAmount(instr.Amount, token.Decimals)
	if err != nil {
		return Validated{}, err
	}

	sourceTx := strings.TrimSpace(instr.SourceTxHash)
	if sourceTx != "" && (!strings.HasPrefix(sourceTx, "0x") || len(common.FromHex(sourceTx)) != common.HashLength) {
		return Validated{}, clierr.New(clierr.CodeUsage, "source transaction hash must be a 32-byte hex string")
	}

	return Validated{
		Instruction: model.BridgeInstruction{
			SourceChain:      string(source.ID),
			Token:            token.Symbol,
			Amount:           amount.Decimal,
			DestinationChain: string(dest.ID),
			SourceTxHash:     sourceTx,
		},
		Source: source,
		Token:  token,
		Amount: amount,
	}, nil
}
