package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/grid/xlsx"
)

type analyzeOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newAnalyzeCmd() *cobra.Command {
	var (
		maxRows   int
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "analyze <workbook.xlsx>",
		Short: "Analyze a load sheet and print the audit result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			fields, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			dir, sheetID := workbookTarget(args[0])
			svc := newLocalAnalysisService(xlsx.NewStore(dir))

			start := time.Now()
			res, err := svc.Analyze(cmd.Context(), services.AnalyzeInput{
				SheetID:   sheetID,
				TenantID:  conf.DefaultTenant(),
				MaxRows:   maxRows,
				Overrides: fields,
			})
			if err != nil {
				return err
			}
			return writeJSON(analyzeOutput{
				Command:    "analyze",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     res,
			})
		},
	}

	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "Cap on analyzed data rows (default from ANALYZE_MAX_ROWS)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, `Header-to-field override, e.g. "Trip #=loadId" (repeatable)`)
	return cmd
}
