package persistence

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence/models"
)

func ToDBRemapSet(set remap.Set) models.RemapSet {
	return models.RemapSet{
		TenantID:  set.TenantID().String(),
		UserID:    set.UserID().String(),
		Field:     string(set.Field()),
		Entries:   set.Entries(),
		UpdatedAt: set.UpdatedAt(),
	}
}

func ToDomainRemapSet(model models.RemapSet) (remap.Set, error) {
	tenantID, err := uuid.Parse(model.TenantID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tenant UUID from string: %s", model.TenantID)
	}
	userID, err := uuid.Parse(model.UserID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse user UUID from string: %s", model.UserID)
	}
	return remap.New(
		tenantID,
		userID,
		load.Field(model.Field),
		remap.WithEntries(model.Entries),
		remap.WithUpdatedAt(model.UpdatedAt),
	), nil
}

func ToDBAnalysisRun(run analysisrun.Run) models.AnalysisRun {
	model := models.AnalysisRun{
		ID:           run.ID().String(),
		TenantID:     run.TenantID().String(),
		SheetID:      run.SheetID(),
		OK:           run.OK(),
		AnalyzedRows: run.AnalyzedRows(),
		IssueCount:   run.IssueCount(),
		ErrorCount:   run.ErrorCount(),
		CreatedAt:    run.CreatedAt(),
	}
	if run.UserID() != uuid.Nil {
		userID := run.UserID().String()
		model.UserID = &userID
	}
	return model
}

func ToDomainAnalysisRun(model models.AnalysisRun) (analysisrun.Run, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse run UUID from string: %s", model.ID)
	}
	tenantID, err := uuid.Parse(model.TenantID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tenant UUID from string: %s", model.TenantID)
	}
	userID := uuid.Nil
	if model.UserID != nil {
		userID, err = uuid.Parse(*model.UserID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse user UUID from string: %s", *model.UserID)
		}
	}
	return analysisrun.New(
		tenantID,
		userID,
		model.SheetID,
		analysisrun.WithID(id),
		analysisrun.WithOutcome(model.OK, model.AnalyzedRows, model.IssueCount, model.ErrorCount),
		analysisrun.WithCreatedAt(model.CreatedAt),
	), nil
}
