package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

func newTokenCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint access tokens for operators and tests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "student <user-id>",
		Short: "Mint a student token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			token, err := service.NewAuthService(cfg).GenerateStudentToken(userID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})

	var perms []string
	admin := &cobra.Command{
		Use:   "admin <user-id>",
		Short: "Mint an admin token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			for _, p := range perms {
				if !knownPermission(p) {
					return fmt.Errorf("unknown permission %q", p)
				}
			}
			token, err := service.NewAuthService(cfg).GenerateAdminToken(userID, perms)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	admin.Flags().StringSliceVarP(&perms, "permission", "p", allPermissions(), "permissions to grant")
	cmd.AddCommand(admin)

	return cmd
}

func allPermissions() []string {
	out := make([]string, len(model.AllPermissions))
	for i, p := range model.AllPermissions {
		out[i] = string(p)
	}
	return out
}

func knownPermission(p string) bool {
	for _, known := range model.AllPermissions {
		if string(known) == p {
			return true
		}
	}
	return false
}
