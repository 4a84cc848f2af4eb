package app

import (
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Supported chains"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List supported source chains and the destination chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chains := registry.ListChains()
			infos := make([]model.ChainInfo, 0, len(chains))
			for _, c := range chains {
				infos = append(infos, c.Info())
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), infos, nil, out.CacheBypass())
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newTokensCommand() *cobra.Command {
	root := &cobra.Command{Use: "tokens", Short: "Supported tokens"}
	var chainArg string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens available on a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := registry.ParseChain(chainArg)
			if err != nil {
				return err
			}
			tokens, err := registry.TokensFor(chain.ID)
			if err != nil {
				return err
			}
			infos := make([]model.TokenInfo, 0, len(tokens))
			for _, t := range tokens {
				infos = append(infos, t.Info(chain.ID))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), infos, nil, out.CacheBypass())
		},
	}
	list.Flags().StringVar(&chainArg, "chain", "", "Chain id, name or network id")
	_ = list.MarkFlagRequired("chain")
	root.AddCommand(list)
	return root
}
