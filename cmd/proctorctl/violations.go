package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

type violationRow struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"violation_type" yaml:"violation_type"`
	Description string `json:"description" yaml:"description"`
	SnapshotURL string `json:"snapshot_url,omitempty" yaml:"snapshot_url,omitempty"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
}

func toViolationRow(v proctor.ViolationRecord) violationRow {
	row := violationRow{
		ID:          v.ID.String(),
		Type:        string(v.Type),
		Description: v.Description,
		CreatedAt:   v.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if v.SnapshotPath != nil {
		row.SnapshotURL = *v.SnapshotPath
	}
	return row
}

type countRow struct {
	AttemptID string `json:"attempt_id" yaml:"attempt_id"`
	StudentID string `json:"student_id" yaml:"student_id"`
	Type      string `json:"violation_type" yaml:"violation_type"`
	Count     int64  `json:"count" yaml:"count"`
}

func newViolationsCmd(cfg *config.Config) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "violations",
		Short: "Report proctoring violations",
	}
	cmd.PersistentFlags().StringVarP(&format, "output", "o", "", "output format: table, json or yaml")

	var filter model.ViolationFilter
	list := &cobra.Command{
		Use:   "list <attempt-id>",
		Short: "List the violations recorded for an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attemptID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid attempt id: %w", err)
			}
			if fields := validator.Struct(filter); fields != nil {
				return fmt.Errorf("invalid filter: %v", fields)
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

			recs, page, err := service.NewViolationService(st.attempts, st.violations).ListByAttempt(cmd.Context(), attemptID, filter)
			if err != nil {
				return err
			}
			items := make([]violationRow, len(recs))
			rows := make([][]string, len(recs))
			for i, r := range recs {
				items[i] = toViolationRow(r)
				rows[i] = []string{items[i].CreatedAt, items[i].Type, items[i].Description, items[i].SnapshotURL}
			}
			if err := render(out, f, items, []string{"TIME", "TYPE", "DESCRIPTION", "SNAPSHOT"}, rows); err != nil {
				return err
			}
			if f == formatTable {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "page %d/%d, %d total\n", page.Page, page.TotalPages, page.TotalItems)
			}
			return nil
		},
	}
	list.Flags().StringVar(&filter.Type, "type", "", "only this violation type")
	list.Flags().IntVar(&filter.Page, "page", 1, "page number")
	list.Flags().IntVar(&filter.PerPage, "per-page", 50, "records per page")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "counts <exam-id>",
		Short: "Tally violations per attempt and type for an exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid exam id: %w", err)
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

			counts, err := service.NewViolationService(st.attempts, st.violations).CountByExam(cmd.Context(), examID)
			if err != nil {
				return err
			}
			items := make([]countRow, len(counts))
			rows := make([][]string, len(counts))
			for i, c := range counts {
				items[i] = countRow{AttemptID: c.AttemptID, StudentID: c.StudentID, Type: string(c.Type), Count: c.Count}
				rows[i] = []string{c.AttemptID, c.StudentID, string(c.Type), strconv.FormatInt(c.Count, 10)}
			}
			return render(out, f, items, []string{"ATTEMPT", "STUDENT", "TYPE", "COUNT"}, rows)
		},
	})

	return cmd
}
