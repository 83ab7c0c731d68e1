package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robertbuff/imagine/internal/model"
	"github.com/robertbuff/imagine/internal/scenario"
)

// ValidationIssue is one problem found in a model or scenario file.
type ValidationIssue struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results across all checked files.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file...>",
		Short: "Validate model and scenario files",
		Long: `Validate CUE models and YAML scenarios without running anything.

Models (.cue) are compiled; scenarios (.yaml, .yml) are parsed, checked
structurally, and the model each one names is compiled too. Problems
across all files are reported together.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (missing path, unsupported extension)

Examples:
  imagine validate ./models/pricing.cue
  imagine validate ./scenarios/launch.yaml ./scenarios/rollback.yaml
  imagine validate ./models/pricing.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true, Files: len(paths)}
	for _, path := range paths {
		issues, err := validateFile(path, formatter)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "validation aborted", err)
		}
		result.Issues = append(result.Issues, issues...)
	}

	if len(result.Issues) > 0 {
		result.Valid = false
		return outputValidationIssues(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateFile dispatches on file extension. Missing files and unknown
// extensions abort the run; compile and parse problems come back as issues.
func validateFile(path string, formatter *OutputFormatter) ([]ValidationIssue, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	switch filepath.Ext(path) {
	case ".cue":
		formatter.VerboseLog("Validating model: %s", path)
		return validateModelFile(path), nil
	case ".yaml", ".yml":
		formatter.VerboseLog("Validating scenario: %s", path)
		return validateScenarioFile(path), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s (want .cue, .yaml or .yml)", path)
	}
}

// validateModelFile compiles a CUE model and converts failures to issues.
func validateModelFile(path string) []ValidationIssue {
	if _, err := model.Load(path); err != nil {
		return []ValidationIssue{issueFromModelError(path, err)}
	}
	return nil
}

// validateScenarioFile parses a scenario and compiles the model it names.
func validateScenarioFile(path string) []ValidationIssue {
	s, err := scenario.Load(path)
	if err != nil {
		return []ValidationIssue{{
			File:    path,
			Field:   "scenario",
			Code:    ErrCodeScenario,
			Message: err.Error(),
		}}
	}

	if _, err := model.Load(s.Model); err != nil {
		return []ValidationIssue{issueFromModelError(s.Model, err)}
	}
	return nil
}

// issueFromModelError keeps the CUE position when the compiler reported one.
func issueFromModelError(path string, err error) ValidationIssue {
	var compileErr *model.CompileError
	if errors.As(err, &compileErr) {
		issue := ValidationIssue{
			File:    path,
			Field:   compileErr.Field,
			Code:    ErrCodeModel,
			Message: compileErr.Message,
		}
		if compileErr.Pos.IsValid() {
			issue.Line = compileErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{File: path, Code: ErrCodeModel, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d file(s) valid\n", result.Files)
	return nil
}

// outputValidationIssues outputs all collected issues.
func outputValidationIssues(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Issues[0].Code,
				Message: result.Issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range result.Issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		} else {
			fmt.Fprintln(formatter.Writer, issue.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
}
