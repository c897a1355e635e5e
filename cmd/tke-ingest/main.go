// tke-ingest is a CLI front end to the orchestrator's ingest_case,
// delete_case, and get_stats operations, sharing the same wiring as the
// HTTP server in cmd/tke.
//
// Exit codes: 0 success; 1 partial (one store wrote, the other failed);
// 2 extraction failure; 3 invalid arguments.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unergybot/tke/pkg/app"
	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/orchestrator"
)

const (
	exitSuccess          = 0
	exitPartial          = 1
	exitExtractionFailed = 2
	exitInvalidArgs      = 3
)

var (
	configDir string
	imagesDir string
	renderDir string
)

var rootCmd = &cobra.Command{
	Use:   "tke-ingest",
	Short: "Ingest, delete, and inspect troubleshooting cases",
}

var (
	validateMappings     bool
	noVLM                bool
	forceReindex         bool
	autoCorrectThreshold float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <spreadsheet>",
	Short: "Extract, map, validate, enrich, and index one case spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.Build(cmd.Context(), configDir, imagesDir, renderDir)
		if err != nil {
			return exitCodeErr{code: exitInvalidArgs, err: err}
		}
		defer application.DB.Close()

		caseID, err := application.Orch.IngestCase(cmd.Context(), nil, args[0], orchestrator.IngestOptions{
			Validate:             validateMappings,
			AutoCorrectThreshold: autoCorrectThreshold,
			VLMEnrich:            !noVLM,
			ForceReindex:         forceReindex,
		})
		if err != nil {
			return classifyIngestError(err)
		}
		fmt.Printf("ingested case %s\n", caseID)
		return nil
	},
}

var deleteCaseCmd = &cobra.Command{
	Use:   "delete-case <case-id>",
	Short: "Remove a case from both stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.Build(cmd.Context(), configDir, imagesDir, renderDir)
		if err != nil {
			return exitCodeErr{code: exitInvalidArgs, err: err}
		}
		defer application.DB.Close()

		if err := application.Orch.DeleteCase(cmd.Context(), nil, args[0]); err != nil {
			return exitCodeErr{code: exitPartial, err: err}
		}
		fmt.Printf("deleted case %s\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print relational, vector, and cache counts as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.Build(cmd.Context(), configDir, imagesDir, renderDir)
		if err != nil {
			return exitCodeErr{code: exitInvalidArgs, err: err}
		}
		defer application.DB.Close()

		stats, err := application.Orch.GetStats(cmd.Context(), nil)
		if err != nil {
			return exitCodeErr{code: exitPartial, err: err}
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// exitCodeErr carries the process exit code a failing command should use.
type exitCodeErr struct {
	code int
	err  error
}

func (e exitCodeErr) Error() string { return e.err.Error() }
func (e exitCodeErr) Unwrap() error { return e.err }

// classifyIngestError maps a component-layer error to the exit codes
// documented in the operational entry points: extraction failures (no
// models.Case could be built at all) exit 2; everything else that reached
// the orchestrator but did not fully succeed exits 1.
func classifyIngestError(err error) error {
	if errors.Is(err, models.ErrInput) {
		return exitCodeErr{code: exitExtractionFailed, err: err}
	}
	return exitCodeErr{code: exitPartial, err: err}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "./deploy/config", "Path to configuration directory")
	rootCmd.PersistentFlags().StringVar(&imagesDir, "images-dir", "./data/images", "Path extracted case images are written under")
	rootCmd.PersistentFlags().StringVar(&renderDir, "render-dir", "./data/renders", "Path rendered validation pages are written under")

	ingestCmd.Flags().BoolVar(&validateMappings, "validate-mappings", false, "Run the page-render + VLM validation pass")
	ingestCmd.Flags().BoolVar(&noVLM, "no-vlm", false, "Skip per-image VLM enrichment")
	ingestCmd.Flags().BoolVar(&forceReindex, "force-reindex", false, "Overwrite an already-indexed case")
	ingestCmd.Flags().Float64Var(&autoCorrectThreshold, "auto-correct-threshold", 0, "Override the configured auto-correct confidence threshold (0 = use config default)")

	rootCmd.AddCommand(ingestCmd, deleteCaseCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		var ec exitCodeErr
		if errors.As(err, &ec) {
			fmt.Fprintln(os.Stderr, ec.Error())
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidArgs)
	}
}
