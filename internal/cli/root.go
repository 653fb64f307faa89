// Package cli implements autobuyctl, the operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ticket-autobuy/internal/config"
	"github.com/iliyamo/ticket-autobuy/internal/database"
	"github.com/iliyamo/ticket-autobuy/internal/repository"
)

// RootOptions holds global flags and the hooks commands use to reach the
// outside world.  Tests replace the hooks.
type RootOptions struct {
	Format string // "json" | "text"

	// LoadConfig reads the process configuration.
	LoadConfig func() config.Config
	// OpenRules opens the approval rule store; the returned func closes it.
	OpenRules func(cfg config.Config) (RuleWriter, func(), error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command wired to the real config and
// database.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{
		LoadConfig: config.Load,
		OpenRules:  openRuleStore,
	})
}

// NewRootCommandWith creates the root command around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autobuyctl",
		Short: "Operator tools for the ticket auto-buy pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	return cmd
}

func openRuleStore(cfg config.Config) (RuleWriter, func(), error) {
	db, err := database.Open(cfg.Database())
	if err != nil {
		return nil, nil, err
	}
	return repository.NewApprovalRuleRepo(db), func() { _ = db.Close() }, nil
}

// emit writes v as indented JSON, or text via the fallback, depending on format.
func emit(w io.Writer, format string, v any, text string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
