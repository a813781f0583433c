package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shifts-connector/internal/app"
)

func newExportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export [team] [week_start]",
		Short: "导出已同步的周快照（xlsx / ics）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekStart, err := time.ParseInLocation("2006-01-02", args[1], time.UTC)
			if err != nil {
				return fmt.Errorf("week_start 格式应为 YYYY-MM-DD: %w", err)
			}

			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			exporter := a.Service.Export.ExportSnapshotXLSX
			switch format {
			case "xlsx":
			case "ics":
				exporter = a.Service.Export.ExportSnapshotICS
			default:
				return fmt.Errorf("不支持的导出格式: %s", format)
			}

			buf, filename, err := exporter(cmd.Context(), args[0], weekStart)
			if err != nil {
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已导出 %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "导出格式（xlsx / ics）")
	cmd.Flags().StringVarP(&out, "output", "o", "", "输出文件（默认使用生成的文件名）")
	return cmd
}
