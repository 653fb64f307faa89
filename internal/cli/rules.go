package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/ticket-autobuy/internal/model"
	"github.com/iliyamo/ticket-autobuy/internal/rules"
	"github.com/iliyamo/ticket-autobuy/internal/seat"
)

// RuleWriter stores approval rules in one transaction.
type RuleWriter interface {
	CreateBulkTx(ctx context.Context, rules []model.ApprovalRule) error
}

// ruleEntry is one item of a rules file.  MinRow may be a number or a row
// label such as "C" or "AA".
type ruleEntry struct {
	EventID string `yaml:"event_id"`
	Section string `yaml:"section"`
	MinRow  string `yaml:"min_row"`
}

// ParseRulesFile reads a YAML list of rules and normalizes every entry.
// The whole file is rejected when any entry does not normalize.
func ParseRulesFile(r io.Reader) ([]model.ApprovalRule, error) {
	var entries []ruleEntry
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("rules file is empty")
		}
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	out := make([]model.ApprovalRule, 0, len(entries))
	for i, e := range entries {
		section, ok := rules.SectionToken(e.Section)
		if !ok {
			return nil, fmt.Errorf("rule %d: section %q does not normalize", i+1, e.Section)
		}
		minRow, ok := seat.NormalizeRow(e.MinRow)
		if !ok {
			return nil, fmt.Errorf("rule %d: min_row %q does not normalize", i+1, e.MinRow)
		}
		rule := model.ApprovalRule{Section: section, MinRow: minRow}
		if ev := strings.TrimSpace(e.EventID); ev != "" {
			rule.EventID = &ev
		}
		out = append(out, rule)
	}
	return out, nil
}

// NewRulesCommand groups approval rule maintenance.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage auto-approval rules",
	}
	cmd.AddCommand(newRulesImportCommand(rootOpts))
	return cmd
}

func newRulesImportCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-insert approval rules from a YAML file",
		Long: `Bulk-insert approval rules from a YAML list such as:

  - section: "134"      # stored as 100x
    min_row: C          # stored as 3
  - event_id: E1
    section: 200x
    min_row: 10

Rules without event_id apply to every event.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			parsed, err := ParseRulesFile(f)
			if err != nil {
				return err
			}
			if !dryRun {
				store, closeStore, err := rootOpts.OpenRules(rootOpts.LoadConfig())
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer closeStore()
				if err := store.CreateBulkTx(cmd.Context(), parsed); err != nil {
					return fmt.Errorf("insert rules: %w", err)
				}
			}
			var b strings.Builder
			for _, r := range parsed {
				scope := "*"
				if r.EventID != nil {
					scope = *r.EventID
				}
				fmt.Fprintf(&b, "%s\t%s\t%s\n", scope, r.Section, strconv.Itoa(r.MinRow))
			}
			verb := "imported"
			if dryRun {
				verb = "validated"
			}
			fmt.Fprintf(&b, "%s %d rule(s)", verb, len(parsed))
			return emit(cmd.OutOrStdout(), rootOpts.Format, map[string]any{verb: len(parsed), "rules": parsed}, b.String())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}
