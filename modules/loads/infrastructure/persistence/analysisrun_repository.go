package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence/models"
	"github.com/loadwise/loadwise/pkg/composables"
	"github.com/loadwise/loadwise/pkg/repo"
)

type AnalysisRunRepository struct{}

func NewAnalysisRunRepository() analysisrun.Repository {
	return &AnalysisRunRepository{}
}

func (r *AnalysisRunRepository) Save(ctx context.Context, run analysisrun.Run) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	dbRow := ToDBAnalysisRun(run)
	if run.TenantID() == uuid.Nil {
		dbRow.TenantID = tenantID.String()
	}
	_, err = tx.Exec(
		ctx,
		`INSERT INTO load_analysis_runs (id, tenant_id, user_id, sheet_id, ok, analyzed_rows, issue_count, error_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dbRow.ID,
		dbRow.TenantID,
		dbRow.UserID,
		dbRow.SheetID,
		dbRow.OK,
		dbRow.AnalyzedRows,
		dbRow.IssueCount,
		dbRow.ErrorCount,
		dbRow.CreatedAt,
	)
	return err
}

func (r *AnalysisRunRepository) List(ctx context.Context, limit int) ([]analysisrun.Run, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, user_id, sheet_id, ok, analyzed_rows, issue_count, error_count, created_at
		FROM load_analysis_runs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	` + repo.FormatLimitOffset(limit, 0)

	rows, err := tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []analysisrun.Run
	for rows.Next() {
		var row models.AnalysisRun
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.UserID,
			&row.SheetID,
			&row.OK,
			&row.AnalyzedRows,
			&row.IssueCount,
			&row.ErrorCount,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		run, err := ToDomainAnalysisRun(row)
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
