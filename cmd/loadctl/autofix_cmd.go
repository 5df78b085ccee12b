package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loadwise/loadwise/modules/loads/domain/value_objects/apptime"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/grid/xlsx"
)

type autofixOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newAutofixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autofix",
		Short: "Plan and apply mechanical sheet repairs",
	}
	cmd.AddCommand(newAutofixPlanCmd())
	cmd.AddCommand(newAutofixApplyCmd())
	return cmd
}

func newAutofixPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <workbook.xlsx>",
		Short: "Show the repairs a workbook would get, without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, sheetID := workbookTarget(args[0])
			svc := newLocalAutoFixService(xlsx.NewStore(dir))

			start := time.Now()
			plan, err := svc.Plan(cmd.Context(), sheetID)
			if err != nil {
				return err
			}
			return writeJSON(autofixOutput{
				Command:    "autofix plan",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     plan,
			})
		},
	}
	return cmd
}

func newAutofixApplyCmd() *cobra.Command {
	var (
		createColumns  bool
		normalizeDates bool
		tzOffset       string
	)

	cmd := &cobra.Command{
		Use:   "apply <workbook.xlsx>",
		Short: "Apply selected repairs to the workbook in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tzOffset != "" {
				if _, err := apptime.ParseOffset(tzOffset); err != nil {
					return fmt.Errorf("invalid --tz-offset %q (expected Z, UTC or an offset like -06:00)", tzOffset)
				}
			}
			dir, sheetID := workbookTarget(args[0])
			svc := newLocalAutoFixService(xlsx.NewStore(dir))

			start := time.Now()
			report, err := svc.Apply(cmd.Context(), sheetID, services.ApplyOptions{
				CreateMissingColumns: createColumns,
				NormalizeDates:       normalizeDates,
				TimezoneOffset:       tzOffset,
			})
			if err != nil {
				return err
			}
			return writeJSON(autofixOutput{
				Command:    "autofix apply",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     report,
			})
		},
	}

	cmd.Flags().BoolVar(&createColumns, "create-columns", false, "Create columns for unresolved required fields")
	cmd.Flags().BoolVar(&normalizeDates, "normalize-dates", false, "Rewrite unambiguous timestamps as ISO-8601 UTC")
	cmd.Flags().StringVar(&tzOffset, "tz-offset", "", "Offset assumed for timestamps without one, e.g. -06:00")
	return cmd
}
