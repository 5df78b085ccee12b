package services

import (
	"context"

	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
)

const defaultRunListLimit = 50

// RunService reads the analysis run log.
type RunService struct {
	repo analysisrun.Repository
}

func NewRunService(repo analysisrun.Repository) *RunService {
	return &RunService{repo: repo}
}

// Recent returns the newest runs, most recent first.
func (s *RunService) Recent(ctx context.Context, limit int) ([]analysisrun.Run, error) {
	if limit <= 0 {
		return s.repo.List(ctx, defaultRunListLimit)
	}
	return s.repo.List(ctx, limit)
}
