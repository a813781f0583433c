package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"shifts-connector/internal/app"
	"shifts-connector/internal/dto"
)

func newSyncCmd() *cobra.Command {
	var past, future int

	cmd := &cobra.Command{
		Use:   "sync [team]",
		Short: "对账团队窗口内的所有周",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			req := &dto.TeamSyncRequest{TeamID: args[0]}
			if cmd.Flags().Changed("past") {
				req.PastWeeks = &past
			}
			if cmd.Flags().Changed("future") {
				req.FutureWeeks = &future
			}

			resp, err := a.Service.Sync.SyncTeam(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("同步失败: %w", err)
			}
			if outputJSON {
				return printJSON(resp)
			}

			fmt.Printf("\nTeam Sync: %s (%s)\n\n", resp.TeamID, resp.Severity)
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Week", "Created", "Updated", "Deleted", "Failed", "Skipped", "Cycles", "Finished", "Error"})
			for _, w := range resp.Weeks {
				table.Append([]string{
					w.WeekStart,
					strconv.Itoa(w.Result.CreatedCount),
					strconv.Itoa(w.Result.UpdatedCount),
					strconv.Itoa(w.Result.DeletedCount),
					strconv.Itoa(w.Result.FailedCount),
					strconv.Itoa(w.Result.SkippedCount),
					strconv.Itoa(w.Result.IterationCount),
					strconv.FormatBool(w.Result.Finished),
					w.Error,
				})
			}
			table.SetFooter([]string{
				"Total",
				strconv.Itoa(resp.Total.CreatedCount),
				strconv.Itoa(resp.Total.UpdatedCount),
				strconv.Itoa(resp.Total.DeletedCount),
				strconv.Itoa(resp.Total.FailedCount),
				strconv.Itoa(resp.Total.SkippedCount),
				strconv.Itoa(resp.Total.IterationCount),
				strconv.FormatBool(resp.Total.Finished),
				"",
			})
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&past, "past", 0, "向前同步的周数（默认取配置）")
	cmd.Flags().IntVar(&future, "future", 0, "向后同步的周数（默认取配置）")
	return cmd
}
