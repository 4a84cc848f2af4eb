// Package schema describes the command tree so agents can discover commands,
// flags and exit codes without parsing help text.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Runnable    bool            `json:"runnable"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Usage    string `json:"usage"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
	Global   bool   `json:"global,omitempty"`
}

// ExitCode documents one process exit status.
type ExitCode struct {
	Code int    `json:"code"`
	Type string `json:"type"`
}

type Document struct {
	Command   CommandSchema `json:"command"`
	ExitCodes []ExitCode    `json:"exit_codes"`
}

var documentedCodes = []clierr.Code{
	clierr.CodeInternal,
	clierr.CodeUsage,
	clierr.CodeAuth,
	clierr.CodeRateLimited,
	clierr.CodeUnavailable,
	clierr.CodeUnsupported,
	clierr.CodeNotFound,
	clierr.CodeBlocked,
	clierr.CodeSession,
	clierr.CodeRejected,
	clierr.CodeNoProvider,
	clierr.CodeNeedInfo,
	clierr.CodeTimeout,
	clierr.CodePersistence,
}

// Build describes the subtree at commandPath (space separated, relative to
// root). An empty path describes the whole tree.
func Build(root *cobra.Command, commandPath string) (Document, error) {
	cmd := root
	for _, part := range strings.Fields(commandPath) {
		idx := slices.IndexFunc(cmd.Commands(), func(c *cobra.Command) bool { return c.Name() == part })
		if idx < 0 {
			return Document{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("command not found: %s", commandPath))
		}
		cmd = cmd.Commands()[idx]
	}
	doc := Document{Command: describe(cmd)}
	for _, code := range documentedCodes {
		doc.ExitCodes = append(doc.ExitCodes, ExitCode{Code: int(code), Type: clierr.Kind(clierr.New(code, ""))})
	}
	return doc, nil
}

func describe(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:     strings.TrimSpace(cmd.CommandPath()),
		Use:      cmd.Use,
		Short:    cmd.Short,
		Runnable: cmd.Runnable(),
		Flags:    flagsOf(cmd),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, describe(sub))
	}
	return s
}

func flagsOf(cmd *cobra.Command) []FlagSchema {
	var items []FlagSchema
	add := func(global bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden || f.Name == "help" {
				return
			}
			_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
			items = append(items, FlagSchema{
				Name:     f.Name,
				Type:     f.Value.Type(),
				Usage:    f.Usage,
				Default:  f.DefValue,
				Required: required,
				Global:   global,
			})
		}
	}
	cmd.LocalNonPersistentFlags().VisitAll(add(false))
	if !cmd.HasParent() {
		cmd.PersistentFlags().VisitAll(add(true))
	}
	return items
}
