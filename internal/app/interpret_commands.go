package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/interpret"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// instructionArgs is the shared input of commands that take either free
// text or explicit --chain/--token/--amount flags.
type instructionArgs struct {
	chain    string
	token    string
	amount   string
	sourceTx string
}

func (a *instructionArgs) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.chain, "chain", "", "Source chain")
	cmd.Flags().StringVar(&a.token, "token", "", "Token symbol")
	cmd.Flags().StringVar(&a.amount, "amount", "", "Amount in decimal units")
	cmd.Flags().StringVar(&a.sourceTx, "source-tx", "", "Hash of a lock transaction already broadcast on the source chain")
}

func (a instructionArgs) explicit() bool {
	return strings.TrimSpace(a.chain) != "" || strings.TrimSpace(a.token) != "" || strings.TrimSpace(a.amount) != ""
}

// resolve builds the instruction from flags, or interprets the positional
// text when no flags are given. The interpretation is returned when one ran.
func (s *runtimeState) resolve(ctx context.Context, args []string, a instructionArgs) (model.BridgeInstruction, *model.Interpretation, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if a.explicit() {
		if text != "" {
			return model.BridgeInstruction{}, nil, clierr.New(clierr.CodeUsage, "pass either free text or --chain/--token/--amount, not both")
		}
		return model.BridgeInstruction{
			SourceChain:      a.chain,
			Token:            a.token,
			Amount:           a.amount,
			DestinationChain: string(registry.DestinationChain),
			SourceTxHash:     strings.TrimSpace(a.sourceTx),
		}, nil, nil
	}
	result, err := s.ensureInterpreter(ctx).Interpret(ctx, text)
	if err != nil {
		return result.Instruction, &result, err
	}
	instr := result.Instruction
	instr.SourceTxHash = strings.TrimSpace(a.sourceTx)
	return instr, &result, nil
}

func (s *runtimeState) newInterpretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interpret <text>",
		Short: "Turn a free-text bridge request into a structured instruction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			result, err := s.ensureInterpreter(ctx).Interpret(ctx, strings.Join(args, " "))
			if err != nil {
				return s.failWith(err, result)
			}
			cache := out.CacheMiss()
			if result.Cached {
				cache = out.CacheHit()
			} else if result.Source == model.SourceLocal {
				cache = out.CacheBypass()
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cache)
		},
	}
}

type estimateResult struct {
	Instruction model.BridgeInstruction `json:"instruction"`
	Estimate    model.BridgeEstimate    `json:"estimate"`
}

func (s *runtimeState) newEstimateCommand() *cobra.Command {
	var a instructionArgs
	cmd := &cobra.Command{
		Use:   "estimate [text]",
		Short: "Estimate time and fees for a bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			instr, interp, err := s.resolve(ctx, args, a)
			if err != nil && clierr.CodeOf(err) != clierr.CodeNeedInfo {
				return err
			}
			var warnings []string
			if interp != nil && len(interp.MissingFields) > 0 {
				warnings = append(warnings, "missing "+strings.Join(interp.MissingFields, ", ")+"; estimate uses placeholders")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), estimateResult{
				Instruction: instr,
				Estimate:    interpret.Estimate(instr),
			}, warnings, out.CacheBypass())
		},
	}
	a.bind(cmd)
	return cmd
}

func (s *runtimeState) newStepsCommand() *cobra.Command {
	var a instructionArgs
	cmd := &cobra.Command{
		Use:   "steps [text]",
		Short: "List the steps a bridge goes through",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			instr, _, err := s.resolve(ctx, args, a)
			if err != nil && clierr.CodeOf(err) != clierr.CodeNeedInfo {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), interpret.Steps(instr), nil, out.CacheBypass())
		},
	}
	a.bind(cmd)
	return cmd
}
