package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xelth-com/assetledger/internal/accounts"
	"github.com/xelth-com/assetledger/internal/models"
)

func newCreateAdminCmd() *cobra.Command {
	var (
		email    string
		name     string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a user account",
		Long: `Create a user account, by default with the admin role. The password can
also be passed in ASSETCTL_PASSWORD to keep it out of shell history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ASSETCTL_PASSWORD")
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			svc := accounts.NewService(e.db.DB, e.cfg.JWTSecret)
			u, err := svc.Create(e.ctx(cmd), accounts.UserInput{
				Email:    email,
				Name:     name,
				Password: password,
				Role:     models.Role(role),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (id %d)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Login email (required)")
	cmd.Flags().StringVar(&name, "name", "Administrator", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 8 characters")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "Role: admin or user")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
