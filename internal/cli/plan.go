package cli

import (
	"github.com/spf13/cobra"
)

// NewPlanCmd создаёт группу команд для каталога планов сервера.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Browse the server plan catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plans, err := client.ListPlans()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TYPE", "UPDATED"}
			rows := make([][]string, len(plans))
			for i, p := range plans {
				rows[i] = []string{p.Name, p.Type, p.UpdatedAt}
			}

			out.Print(headers, rows, plans)
			return nil
		},
	})

	return cmd
}
