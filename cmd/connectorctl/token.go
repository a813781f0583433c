package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shifts-connector/config"
	"shifts-connector/pkg/jwt"
)

func newTokenCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "签发访问 Token",
		Long:  `为运维账号或上游调度服务签发访问 /api/v1 所需的 Bearer Token。`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != jwt.RoleAdmin && role != jwt.RoleService {
				return fmt.Errorf("role 必须为 %s 或 %s", jwt.RoleAdmin, jwt.RoleService)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			token, err := jwt.NewManager(&cfg.Auth).GenerateToken(args[0], role)
			if err != nil {
				return fmt.Errorf("签发 Token 失败: %w", err)
			}
			if outputJSON {
				return printJSON(map[string]string{"subject": args[0], "role": role, "token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RoleService, "调用方角色（admin / service）")
	return cmd
}
