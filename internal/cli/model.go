package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robertbuff/imagine/internal/model"
)

// MappingSummary describes one compiled mapping.
type MappingSummary struct {
	Name       string   `json:"name"`
	Doc        string   `json:"doc,omitempty"`
	Params     []string `json:"params,omitempty"`
	Rows       int      `json:"rows"`
	HasExpr    bool     `json:"has_expr"`
	HasDefault bool     `json:"has_default"`
}

// ModelSummary is the model command's result payload.
type ModelSummary struct {
	File     string           `json:"file"`
	Mappings []MappingSummary `json:"mappings"`
}

// NewModelCommand creates the model command.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model <model.cue>",
		Short: "Compile and summarize a model",
		Long: `Compile a CUE model and summarize its mappings.

Shows each mapping's parameters, its table row count, and whether an expr
rule or a default value backs points no row covers.

Examples:
  imagine model ./models/pricing.cue
  imagine model ./models/pricing.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runModel(opts *RootOptions, path string, cmd *cobra.Command) error {
	m, err := model.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile model", err)
	}

	summary := ModelSummary{
		File:     path,
		Mappings: make([]MappingSummary, 0, len(m.Mappings)),
	}
	for _, mapping := range m.Mappings {
		_, hasDefault := mapping.Default()
		summary.Mappings = append(summary.Mappings, MappingSummary{
			Name:       mapping.Name,
			Doc:        mapping.Doc,
			Params:     mapping.Params,
			Rows:       len(mapping.Rows),
			HasExpr:    mapping.HasExpr(),
			HasDefault: hasDefault,
		})
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: summary}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	return outputModelText(cmd, summary)
}

// outputModelText renders the mapping summary as text.
func outputModelText(cmd *cobra.Command, summary ModelSummary) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Model: %s\n", summary.File)
	fmt.Fprintf(w, "Mappings: %d\n", len(summary.Mappings))
	fmt.Fprintln(w)

	for _, m := range summary.Mappings {
		fmt.Fprintf(w, "  %s(%s)\n", m.Name, strings.Join(m.Params, ", "))
		if m.Doc != "" {
			fmt.Fprintf(w, "    %s\n", m.Doc)
		}
		fmt.Fprintf(w, "    rows=%d expr=%v default=%v\n", m.Rows, m.HasExpr, m.HasDefault)
	}

	return nil
}
