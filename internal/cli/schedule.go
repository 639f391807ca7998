package cli

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/scheduler"
)

// NewScheduleCmd создаёт группу команд для расписаний.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleNextCmd(outputFn),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var onlyEnabled bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules known to the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(onlyEnabled)
			if err != nil {
				return err
			}

			headers := []string{"NAME", "PLAN", "CRON", "INTERVAL", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				interval := ""
				if s.IntervalSec > 0 {
					interval = strconv.Itoa(s.IntervalSec) + "s"
				}
				rows[i] = []string{
					s.Name, s.Plan, s.CronExpr, interval,
					strconv.FormatBool(s.Enabled), s.NextDueAt,
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlyEnabled, "enabled", false, "Only enabled schedules")

	return cmd
}

func newScheduleNextCmd(outputFn func() *Output) *cobra.Command {
	var cronExpr string
	var interval int
	var timezone string
	var count int

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next due times of a cron expression or interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if cronExpr == "" && interval <= 0 {
				return errors.New("either --cron or --interval is required")
			}

			sched := &domain.Schedule{
				Name:        "preview",
				CronExpr:    cronExpr,
				IntervalSec: interval,
				Timezone:    timezone,
			}
			times, err := scheduler.NextDueTimes(sched, time.Now(), count)
			if err != nil {
				return err
			}

			rows := make([][]string, len(times))
			for i, t := range times {
				rows[i] = []string{strconv.Itoa(i + 1), t.Format(time.RFC3339)}
			}
			out.Print([]string{"#", "DUE_AT (UTC)"}, rows, times)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (5 fields or @descriptor)")
	cmd.Flags().IntVar(&interval, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "tz", "", "Timezone for the cron expression (default UTC)")
	cmd.Flags().IntVar(&count, "count", 5, "How many due times to print")

	return cmd
}
