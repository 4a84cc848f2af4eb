package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/bridgectl/internal/server"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
)

func (s *runtimeState) newServeCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.approve = wallet.AutoApprove
			orch, err := s.ensureOrchestrator(ctx)
			if err != nil {
				return err
			}
			orch.ReconcileOrphans(ctx)

			addr := s.settings.ListenAddr
			if listen != "" {
				addr = listen
			}
			srv := server.New(server.Deps{
				Interpreter:    s.ensureInterpreter(ctx),
				Orchestrator:   orch,
				Wallet:         s.wallet,
				Metrics:        s.ensureMetrics(),
				Logger:         s.log,
				EnableCommands: s.settings.EnableCommands,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	return cmd
}
