package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunsCmd создаёт группу команд для просмотра runs на сервере.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded by the API server",
	}

	cmd.AddCommand(
		newRunsListCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var plan string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Plan:   plan,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PLAN", "TRIGGER", "STATUS", "DURATION_MS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.Plan, r.Trigger, r.Status, strconv.FormatInt(r.DurationMs, 10), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&plan, "plan", "", "Filter by plan name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PLAN", "STATUS", "ERROR", "CREATED"},
				[][]string{{run.ID, run.Plan, run.Status, run.Error, run.CreatedAt}},
				run,
			)
			if !out.jsonMode && run.Result != nil {
				out.Value(run.Result)
			}
			return nil
		},
	}
}

// NewSubmitCmd создаёт команду запуска плана на сервере.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var inputsFile string
	var key string
	var async bool

	cmd := &cobra.Command{
		Use:   "submit PLAN",
		Short: "Run a plan from the server catalog",
		Long: "Run a plan from the server catalog. By default the API executes the plan\n" +
			"and returns the finished run; with --async the run is queued for a worker.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			in, err := parseInputs(inputsFile, inputs)
			if err != nil {
				return err
			}
			req := CreateRunRequest{Inputs: in, IdempotencyKey: key}

			if async {
				accepted, err := client.EnqueueRun(args[0], req)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run queued: %s", accepted.RunID))
				out.Print(
					[]string{"RUN_ID", "PLAN", "STATUS"},
					[][]string{{accepted.RunID, accepted.Plan, accepted.Status}},
					accepted,
				)
				return nil
			}

			run, err := client.CreateRun(args[0], req)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PLAN", "STATUS", "DURATION_MS", "ERROR"},
				[][]string{{run.ID, run.Plan, run.Status, strconv.FormatInt(run.DurationMs, 10), run.Error}},
				run,
			)
			if run.Status != "SUCCEEDED" {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
			}
			if !out.jsonMode && run.Result != nil {
				out.Value(run.Result)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable, VALUE may be JSON)")
	cmd.Flags().StringVar(&inputsFile, "inputs", "", "YAML or JSON file with initial context")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Reject a second run with the same key")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the run for a worker instead of waiting")

	return cmd
}
