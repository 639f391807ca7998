package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/planner"
	"github.com/shaiso/Treeflow/internal/services"
	"github.com/shaiso/Treeflow/internal/telemetry"
	"github.com/shaiso/Treeflow/internal/work"
)

// ErrRunFailed — локальный run завершился не SUCCEEDED.
var ErrRunFailed = errors.New("run failed")

// NewRunCmd создаёт команду локального выполнения файла плана.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var inputs []string
	var inputsFile string
	var trace bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a plan file locally with built-in services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			in, err := parseInputs(inputsFile, inputs)
			if err != nil {
				return err
			}

			plan, err := loadPlanFile(args[0])
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if trace {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			opts := []work.Option{
				work.WithLogger(logger),
				work.WithServices(services.Builtin(services.Config{Out: cmd.OutOrStdout()})),
			}
			if trace {
				obs := telemetry.NewLogObserver(logger)
				obs.Context = true
				opts = append(opts, work.WithObserver(obs))
			}

			wk, err := work.New(opts...)
			if err != nil {
				return err
			}
			name := planName(args[0])
			if err := wk.SetPlan(name, plan); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			run := domain.NewRun(name, domain.TriggerManual, in)
			_ = wk.Execute(ctx, run)

			printLocalRun(out, run)
			if run.Status != domain.RunStatusSucceeded {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable, VALUE may be JSON)")
	cmd.Flags().StringVar(&inputsFile, "inputs", "", "YAML or JSON file with initial context")
	cmd.Flags().BoolVar(&trace, "trace", false, "Log node transitions and context access to stderr")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the run after this duration")

	return cmd
}

// NewValidateCmd создаёт команду проверки файлов планов.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate plan files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var failed int
			for _, path := range args {
				if _, err := loadPlanFile(path); err != nil {
					out.Error(fmt.Sprintf("%s: %v", path, err))
					failed++
					continue
				}
				out.Success(path + ": ok")
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d plans invalid", failed, len(args))
			}
			return nil
		},
	}
}

func loadPlanFile(path string) (*planner.Descriptor, error) {
	plan, err := planner.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := planner.Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// planName — имя файла без расширения.
func planName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printLocalRun(out *Output, run *domain.Run) {
	if out.jsonMode {
		out.JSON(run)
		return
	}

	out.Table(
		[]string{"ID", "PLAN", "STATUS", "DURATION", "ERROR"},
		[][]string{{run.ID.String(), run.Plan, string(run.Status), run.Duration().String(), run.Error}},
	)
	if run.Result != nil {
		out.Value(run.Result)
	}
}
