package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/loadwise/loadwise/modules/loads"
	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/grid/xlsx"
	"github.com/loadwise/loadwise/pkg/logging"
)

// workbookTarget splits a workbook path into the store directory and sheet id.
func workbookTarget(path string) (string, string) {
	return filepath.Dir(path), filepath.Base(path)
}

// cliLogger logs to stderr so command output on stdout stays parseable.
func cliLogger(conf *configuration.Configuration) *logrus.Logger {
	return logging.ConsoleLogger(conf.LogrusLogLevel())
}

func localAnalysisConfig(conf *configuration.Configuration, logger *logrus.Logger) services.AnalysisConfig {
	return services.AnalysisConfig{
		MaxRows:         conf.Analysis.MaxRows,
		Zone:            conf.FallbackLocation(),
		ZoneName:        conf.Analysis.FallbackTimezone,
		AssumedSeverity: issue.Severity(conf.Analysis.AssumedTimezoneSeverity),
		Overrides:       loads.FieldOverrides(conf, logger),
	}
}

// newLocalAnalysisService builds the pipeline over one workbook directory
// with in-process repositories. CLI runs are advisory; no run log survives
// the process and no events are published.
func newLocalAnalysisService(store *xlsx.Store) *services.AnalysisService {
	conf := configuration.Use()
	logger := cliLogger(conf)
	return services.NewAnalysisService(services.AnalysisServiceConfig{
		Source:   store,
		Remaps:   persistence.NewInmemRemapRepository(),
		Runs:     persistence.NewInmemAnalysisRunRepository(),
		Logger:   logger,
		Analysis: localAnalysisConfig(conf, logger),
	})
}

func newLocalAutoFixService(store *xlsx.Store) *services.AutoFixService {
	conf := configuration.Use()
	logger := cliLogger(conf)
	return services.NewAutoFixService(services.AutoFixServiceConfig{
		Store:    store,
		Logger:   logger,
		Analysis: localAnalysisConfig(conf, logger),
	})
}

// parseOverrides turns repeated "Header=field" flags into typed overrides.
func parseOverrides(pairs []string) (map[string]load.Field, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]load.Field, len(pairs))
	for _, pair := range pairs {
		header, name, ok := strings.Cut(pair, "=")
		header = strings.TrimSpace(header)
		name = strings.TrimSpace(name)
		if !ok || header == "" || name == "" {
			return nil, fmt.Errorf("invalid --override %q (expected \"Header=field\")", pair)
		}
		field, known := load.FieldNamed(name)
		if !known {
			return nil, fmt.Errorf("unknown field %q in --override %q", name, pair)
		}
		out[header] = field
	}
	return out, nil
}
