package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "connectorctl",
	Short: "Shifts connector 运维工具",
	Long: `排班连接器的运维命令行工具。

可在不经过 HTTP 接口的情况下签发服务 Token、触发团队同步、
启动或恢复批量清空编排，以及导出已同步的周快照。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "以 JSON 输出")

	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newExportCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
