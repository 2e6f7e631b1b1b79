package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"task-manager/internal/bootstrap"
	"task-manager/internal/core/config"
	"task-manager/internal/core/logger"
	"task-manager/internal/domain"
	"task-manager/internal/repo"
)

// withApp 每条命令独立装配，结束即释放
func withApp(cmd *cobra.Command, fn func(a *bootstrap.App) error) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON, "")
	defer cleanup()
	// 运维命令不自动建表，migrate 显式执行
	cfg.DB.AutoMigrate = false
	a, err := bootstrap.New(cmd.Context(), cfg, log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users, user_tokens and tasks tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *bootstrap.App) error {
			if err := repo.AutoMigrate(a.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrate done")
			return nil
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Inspect and manage user accounts by email",
}

var userShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Print the account and its active session count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *bootstrap.App) error {
			u, err := findByEmail(cmd, a, args[0])
			if err != nil {
				return err
			}
			toks, err := a.Tokens.Active(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				domain.User
				Sessions int `json:"sessions"`
			}{*u, len(toks)})
		})
	},
}

var userRevokeCmd = &cobra.Command{
	Use:   "revoke-sessions <email>",
	Short: "Log the account out of every device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *bootstrap.App) error {
			u, err := findByEmail(cmd, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Users.LogoutAll(cmd.Context(), u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked all sessions of %s\n", u.Email)
			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete the account together with its tasks and sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *bootstrap.App) error {
			u, err := findByEmail(cmd, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Users.Delete(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", u.Email, u.ID)
			return nil
		})
	},
}

func findByEmail(cmd *cobra.Command, a *bootstrap.App, email string) (*domain.User, error) {
	u, err := a.Users.FindByEmail(cmd.Context(), email)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", domain.NormalizeEmail(email), err)
	}
	return u, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd, userCmd)
	userCmd.AddCommand(userShowCmd, userRevokeCmd, userDeleteCmd)
}
