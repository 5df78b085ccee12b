package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
)

var (
	loadsAnalyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loads",
		Subsystem: "analysis",
		Name:      "runs_total",
		Help:      "Total number of sheet analyses broken down by result.",
	}, []string{"result"})

	loadsRowsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loads",
		Subsystem: "analysis",
		Name:      "rows_total",
		Help:      "Total number of data rows read across analyses.",
	})

	loadsIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loads",
		Subsystem: "analysis",
		Name:      "issues_total",
		Help:      "Total number of issues recorded broken down by code.",
	}, []string{"code"})

	loadsAutofixCells = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loads",
		Subsystem: "autofix",
		Name:      "cells_updated_total",
		Help:      "Total number of sheet cells rewritten by autofix applies.",
	})
)

func recordAnalysisMetrics(ok bool, rows int, issues []issue.Issue) {
	result := "clean"
	if !ok {
		result = "flagged"
	}
	loadsAnalyses.WithLabelValues(result).Inc()
	loadsRowsAnalyzed.Add(float64(rows))
	for _, iss := range issues {
		loadsIssues.WithLabelValues(string(iss.Code)).Inc()
	}
}
