package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"shifts-connector/internal/app"
	"shifts-connector/internal/dto"
	"shifts-connector/internal/service"
)

func newClearCmd() *cobra.Command {
	var (
		startDate, endDate, queryEnd string
		batchSize                    int
	)

	cmd := &cobra.Command{
		Use:   "clear [team]",
		Short: "启动批量清空编排并等待结束",
		Long: `在本进程内运行团队的批量清空编排，直到成功或达到最大迭代次数。
中断（Ctrl+C）后实例保持 running，可由 "clear resume" 或服务进程接续。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			req := &dto.ClearScheduleRequest{
				TeamID:      args[0],
				StartDate:   startDate,
				EndDate:     endDate,
				BatchSize:   batchSize,
				RequestedBy: "connectorctl",
			}
			if queryEnd != "" {
				req.QueryEndDate = &queryEnd
			}

			accepted, err := a.Service.Clear.Start(cmd.Context(), req)
			if err != nil {
				var ve *service.ValidationError
				if errors.As(err, &ve) {
					return fmt.Errorf("参数校验失败: %s", ve.Error())
				}
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "清空编排已启动: %s (%s ~ %s)\n", accepted.InstanceKey, accepted.StartDate, accepted.EndDate)

			a.Service.Clear.Wait()
			return printClearStatus(a, args[0])
		},
	}
	cmd.Flags().StringVar(&startDate, "start", "", "开始日期 YYYY-MM-DD（默认按配置窗口）")
	cmd.Flags().StringVar(&endDate, "end", "", "结束日期 YYYY-MM-DD（默认按配置窗口）")
	cmd.Flags().StringVar(&queryEnd, "query-end", "", "拉取窗口结束日期，不早于 --end")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "单次迭代拉取的班次数（默认取配置）")

	cmd.AddCommand(&cobra.Command{
		Use:   "status [team]",
		Short: "查询团队最近一次清空编排状态",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()
			return printClearStatus(a, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "恢复所有未终结的清空编排并等待结束",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			n := a.Supervisor().ResumeAll(cmd.Context())
			fmt.Fprintf(cmd.ErrOrStderr(), "已恢复 %d 个清空编排\n", n)
			a.Service.Clear.Wait()
			return nil
		},
	})
	return cmd
}

func printClearStatus(a *app.App, teamID string) error {
	// 运行上下文可能已被取消，状态查询使用独立上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := a.Service.Clear.Status(ctx, teamID)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(status)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Instance", status.InstanceKey})
	table.Append([]string{"Status", status.Status})
	table.Append([]string{"Severity", status.Severity})
	table.Append([]string{"Window", status.StartDate + " ~ " + status.EndDate})
	table.Append([]string{"Iterations", fmt.Sprintf("%d / %d", status.IterationCount, status.MaxAttempts)})
	table.Append([]string{"Deleted", strconv.Itoa(status.Result.DeletedCount)})
	table.Append([]string{"Failed", strconv.Itoa(status.Result.FailedCount)})
	table.Append([]string{"Finished", strconv.FormatBool(status.Result.Finished)})
	if status.LastError != nil {
		table.Append([]string{"Last Error", *status.LastError})
	}
	table.Render()
	return nil
}
