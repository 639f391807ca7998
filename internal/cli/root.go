package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес API, если не задан --api-url или TREEFLOW_API_URL.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd собирает дерево команд treeflow.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "treeflow",
		Short:         "Treeflow CLI — run and inspect workflow plans",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := DefaultAPIURL
	if v := os.Getenv("TREEFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		NewRunCmd(outputFn),
		NewValidateCmd(outputFn),
		NewSubmitCmd(clientFn, outputFn),
		NewRunsCmd(clientFn, outputFn),
		NewPlanCmd(clientFn, outputFn),
		NewScheduleCmd(clientFn, outputFn),
	)

	return rootCmd
}
