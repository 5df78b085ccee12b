package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/pkg/application"
	"github.com/loadwise/loadwise/pkg/configuration"
)

// AnalysisEventsHandler writes an operator-facing log line for every analysis
// and remap change. The run log table is the durable record; this is the live
// trail.
type AnalysisEventsHandler struct {
	app    application.Application
	logger *logrus.Logger
}

func RegisterAnalysisEventHandlers(app application.Application) {
	handler := &AnalysisEventsHandler{
		app:    app,
		logger: configuration.Use().Logger(),
	}
	app.EventPublisher().Subscribe(handler.onSheetAnalyzed)
	app.EventPublisher().Subscribe(handler.onRemapSaved)
	app.EventPublisher().Subscribe(handler.onRemapDeleted)
}

func (h *AnalysisEventsHandler) onSheetAnalyzed(event analysisrun.AnalyzedEvent) {
	if h.logger == nil {
		return
	}

	entry := h.logger.WithFields(logrus.Fields{
		"sheet_id":      event.SheetID,
		"tenant_id":     event.TenantID,
		"analyzed_rows": event.AnalyzedRows,
		"issues":        event.Issues,
		"errors":        event.Errors,
	})
	if event.OK {
		entry.Info("sheet analyzed clean")
		return
	}
	entry.Warn("sheet analyzed with findings")
}

func (h *AnalysisEventsHandler) onRemapSaved(event remap.SavedEvent) {
	if h.logger == nil {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"tenant_id": event.TenantID,
		"user_id":   event.UserID,
		"field":     event.Field,
		"entries":   event.Entries,
	}).Info("remap table saved")
}

func (h *AnalysisEventsHandler) onRemapDeleted(event remap.DeletedEvent) {
	if h.logger == nil {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"tenant_id": event.TenantID,
		"user_id":   event.UserID,
		"field":     event.Field,
	}).Info("remap table deleted")
}
