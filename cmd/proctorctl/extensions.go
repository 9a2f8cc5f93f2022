package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

type extensionRow struct {
	ID        string `json:"id" yaml:"id"`
	Minutes   int    `json:"extension_minutes" yaml:"extension_minutes"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	GrantedBy string `json:"granted_by,omitempty" yaml:"granted_by,omitempty"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

func toExtensionRow(e model.TimeExtension) extensionRow {
	row := extensionRow{
		ID:        e.ID.String(),
		Minutes:   e.Minutes,
		CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if e.Reason != nil {
		row.Reason = *e.Reason
	}
	if e.GrantedBy != nil {
		row.GrantedBy = e.GrantedBy.String()
	}
	return row
}

func newExtensionsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extensions",
		Short: "Grant or list extra time for attempts",
	}

	var reason, grantedBy string
	grant := &cobra.Command{
		Use:   "grant <attempt-id> <minutes>",
		Short: "Grant extra minutes to an in-progress attempt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attemptID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid attempt id: %w", err)
			}
			minutes, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid minutes: %w", err)
			}
			var by uuid.UUID
			if grantedBy != "" {
				if by, err = uuid.Parse(grantedBy); err != nil {
					return fmt.Errorf("invalid granted-by: %w", err)
				}
			}

			req := model.GrantExtensionRequest{Minutes: minutes, Reason: reason}
			if fields := validator.Struct(req); fields != nil {
				return fmt.Errorf("invalid extension: %v", fields)
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ext, err := service.NewExtensionService(st.attempts, st.extensions, st.log).Grant(cmd.Context(), attemptID, by, req)
			switch {
			case errors.Is(err, service.ErrAttemptNotFound):
				return fmt.Errorf("attempt %s not found", attemptID)
			case errors.Is(err, service.ErrAlreadySubmitted):
				return fmt.Errorf("attempt %s is already submitted", attemptID)
			case err != nil:
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Granted %d minutes to %s (extension %s)\n", ext.Minutes, attemptID, ext.ID)
			return nil
		},
	}
	grant.Flags().StringVar(&reason, "reason", "", "reason recorded with the extension")
	grant.Flags().StringVar(&grantedBy, "granted-by", "", "admin user id recorded as the grantor")
	cmd.AddCommand(grant)

	var format string
	list := &cobra.Command{
		Use:   "list <attempt-id>",
		Short: "List the extensions of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attemptID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid attempt id: %w", err)
			}
			out := cmd.OutOrStdout()
			f, err := resolveFormat(format, out)
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			exts, err := service.NewExtensionService(st.attempts, st.extensions, st.log).List(cmd.Context(), attemptID)
			if err != nil {
				return err
			}
			items := make([]extensionRow, len(exts))
			rows := make([][]string, len(exts))
			for i, e := range exts {
				items[i] = toExtensionRow(e)
				rows[i] = []string{items[i].ID, strconv.Itoa(items[i].Minutes), items[i].Reason, items[i].CreatedAt}
			}
			return render(out, f, items, []string{"ID", "MINUTES", "REASON", "CREATED"}, rows)
		},
	}
	list.Flags().StringVarP(&format, "output", "o", "", "output format: table, json or yaml")
	cmd.AddCommand(list)

	return cmd
}
