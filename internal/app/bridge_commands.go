package app

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/bridgectl/internal/bridge"
	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/id"
	"github.com/ggonzalez94/bridgectl/internal/interpret"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
)

type runPreview struct {
	Instruction model.BridgeInstruction `json:"instruction"`
	Estimate    model.BridgeEstimate    `json:"estimate"`
	Steps       []string                `json:"steps"`
}

func (s *runtimeState) newRunCommand() *cobra.Command {
	var a instructionArgs
	var yes, wait bool
	cmd := &cobra.Command{
		Use:   "run [text]",
		Short: "Connect the wallet to the source chain and bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			instr, interp, err := s.resolve(ctx, args, a)
			if err != nil {
				if interp != nil {
					return s.failWith(err, interp)
				}
				return err
			}
			v, err := bridge.Validate(instr)
			if err != nil {
				return err
			}
			if !yes {
				return s.failWith(
					clierr.New(clierr.CodeRejected, "transfer not confirmed; re-run with --yes to approve the wallet prompts"),
					runPreview{Instruction: v.Instruction, Estimate: interpret.Estimate(v.Instruction), Steps: interpret.Steps(v.Instruction)},
				)
			}

			s.approve = wallet.AutoApprove
			orch, err := s.ensureOrchestrator(ctx)
			if err != nil {
				return err
			}
			if _, err := s.wallet.Connect(ctx, v.Instruction.SourceChain); err != nil {
				return err
			}

			var mu sync.Mutex
			var seen []model.Transition
			onStatus := func(status model.TxStatus, txID string) {
				mu.Lock()
				seen = append(seen, model.Transition{Status: status, TxID: txID})
				mu.Unlock()
				s.log.Info().Str("tx_id", txID).Str("status", string(status)).Msg("bridge status")
			}
			tx, err := orch.Submit(ctx, v.Instruction, onStatus)
			if err != nil {
				return err
			}
			if !wait {
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.RunResult{Transaction: tx}, nil, out.CacheBypass())
			}

			waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*s.settings.PhaseTimeout+s.settings.Timeout)
			defer waitCancel()
			final, err := orch.Wait(waitCtx, tx.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			result := model.RunResult{Transaction: final, Transitions: append([]model.Transition(nil), seen...)}
			mu.Unlock()
			if final.Status == model.StatusFailed {
				return s.failWith(clierr.New(clierr.CodeUnavailable, "bridge failed: "+final.FailureReason), result)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, out.CacheBypass())
		},
	}
	a.bind(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "Approve wallet connection, chain switch and transfer")
	cmd.Flags().BoolVar(&wait, "wait", true, "Print the final record instead of the PENDING one")
	return cmd
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	var txID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one bridge transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			txID = strings.TrimSpace(txID)
			if !id.IsTransactionID(txID) {
				return clierr.New(clierr.CodeUsage, "--id must be a bridge transaction id (btx_...)")
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			store, err := s.ensureTxLog(ctx)
			if err != nil {
				return err
			}
			tx, err := store.Get(txID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), tx, nil, out.CacheBypass())
		},
	}
	cmd.Flags().StringVar(&txID, "id", "", "Transaction id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	var statusArg string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List bridge transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return clierr.New(clierr.CodeUsage, "--limit must be >= 0")
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			store, err := s.ensureTxLog(ctx)
			if err != nil {
				return err
			}
			want := model.TxStatus(strings.ToUpper(strings.TrimSpace(statusArg)))
			txs := make([]model.BridgeTransaction, 0)
			for _, tx := range store.All() {
				if want != "" && tx.Status != want {
					continue
				}
				txs = append(txs, tx)
				if limit > 0 && len(txs) == limit {
					break
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), txs, nil, out.CacheBypass())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum transactions to return (0 for all)")
	cmd.Flags().StringVar(&statusArg, "status", "", "Only transactions in this status")
	return cmd
}
