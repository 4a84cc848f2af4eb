package app

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/schema"
)

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Describe commands, flags and exit codes as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), doc, nil, out.CacheBypass())
		},
	}
}
