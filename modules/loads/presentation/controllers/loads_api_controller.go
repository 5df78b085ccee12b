package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/modules/loads/domain/value_objects/apptime"
	"github.com/loadwise/loadwise/modules/loads/presentation/controllers/dtos"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/application"
	"github.com/loadwise/loadwise/pkg/composables"
	"github.com/loadwise/loadwise/pkg/constants"
	"github.com/loadwise/loadwise/pkg/grid"
	"github.com/loadwise/loadwise/pkg/middleware"
	"github.com/loadwise/loadwise/pkg/serrors"
)

type LoadsAPIController struct {
	app       application.Application
	analysis  *services.AnalysisService
	autofix   *services.AutoFixService
	remaps    *services.RemapService
	runs      *services.RunService
	apiPrefix string
}

func NewLoadsAPIController(app application.Application) application.Controller {
	return &LoadsAPIController{
		app:       app,
		analysis:  app.Service(services.AnalysisService{}).(*services.AnalysisService),
		autofix:   app.Service(services.AutoFixService{}).(*services.AutoFixService),
		remaps:    app.Service(services.RemapService{}).(*services.RemapService),
		runs:      app.Service(services.RunService{}).(*services.RunService),
		apiPrefix: "/api/v1/loads",
	}
}

func (c *LoadsAPIController) Key() string {
	return c.apiPrefix
}

func (c *LoadsAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(middleware.WithTenantTx())

	api.HandleFunc("/sheets/{sheetID}/analysis", c.instrumentAPI("loads.analysis", c.Analyze)).Methods(http.MethodPost)
	api.HandleFunc("/sheets/{sheetID}/autofix/plan", c.instrumentAPI("loads.autofix.plan", c.AutofixPlan)).Methods(http.MethodGet)
	api.HandleFunc("/sheets/{sheetID}/autofix", c.instrumentAPI("loads.autofix.apply", c.AutofixApply)).Methods(http.MethodPost)

	api.HandleFunc("/remaps/{field}", c.instrumentAPI("loads.remaps.get", c.GetRemap)).Methods(http.MethodGet)
	api.HandleFunc("/remaps/{field}", c.instrumentAPI("loads.remaps.put", c.PutRemap)).Methods(http.MethodPut)
	api.HandleFunc("/remaps/{field}", c.instrumentAPI("loads.remaps.delete", c.DeleteRemap)).Methods(http.MethodDelete)

	api.HandleFunc("/runs", c.instrumentAPI("loads.runs.list", c.ListRuns)).Methods(http.MethodGet)
}

func (c *LoadsAPIController) Analyze(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	sheetID := mux.Vars(r)["sheetID"]

	var req dtos.AnalyzeRequest
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "LOADS_INVALID_BODY", "invalid json body")
		return
	}
	if !validateRequest(w, &req) {
		return
	}
	overrides, err := fieldOverrides(req.Overrides)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "LOADS_UNKNOWN_FIELD", err.Error())
		return
	}

	userID := composables.UseUserID(r.Context())
	res, err := c.analysis.Analyze(r.Context(), services.AnalyzeInput{
		SheetID:   sheetID,
		Identity:  callerIdentity(r),
		TenantID:  tenantID,
		UserID:    userID,
		MaxRows:   req.MaxRows,
		Overrides: overrides,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "LOADS_INTERNAL", "internal error")
		return
	}

	// Gate rejections keep the result shape but signal retryability through
	// the status code.
	status := http.StatusOK
	if !res.OK && len(res.Issues) == 1 && res.Issues[0].Code == issue.RateLimited {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, res)
}

func (c *LoadsAPIController) AutofixPlan(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}
	sheetID := mux.Vars(r)["sheetID"]

	plan, err := c.autofix.Plan(r.Context(), sheetID)
	if err != nil {
		writeSheetError(w, sheetID, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (c *LoadsAPIController) AutofixApply(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}
	sheetID := mux.Vars(r)["sheetID"]

	var req dtos.AutofixApplyRequest
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "LOADS_INVALID_BODY", "invalid json body")
		return
	}
	if req.TimezoneOffset != "" {
		if _, err := apptime.ParseOffset(req.TimezoneOffset); err != nil {
			writeJSONError(w, http.StatusBadRequest, "LOADS_INVALID_BODY", "timezoneOffset is invalid")
			return
		}
	}

	report, err := c.autofix.Apply(r.Context(), sheetID, services.ApplyOptions{
		CreateMissingColumns: req.CreateMissingColumns,
		NormalizeDates:       req.NormalizeDates,
		TimezoneOffset:       req.TimezoneOffset,
	})
	if err != nil {
		writeSheetError(w, sheetID, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (c *LoadsAPIController) GetRemap(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}
	field, ok := remapField(w, r)
	if !ok {
		return
	}

	set, err := c.remaps.GetByField(r.Context(), composables.UseUserID(r.Context()), field)
	if err != nil {
		writeRemapError(w, field, err)
		return
	}
	writeJSON(w, http.StatusOK, remapResponse(set))
}

func (c *LoadsAPIController) PutRemap(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	field, ok := remapField(w, r)
	if !ok {
		return
	}

	var req dtos.RemapSaveRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "LOADS_INVALID_BODY", "invalid json body")
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	set, err := c.remaps.Save(r.Context(), tenantID, composables.UseUserID(r.Context()), field, req.Entries)
	if err != nil {
		writeRemapError(w, field, err)
		return
	}
	writeJSON(w, http.StatusOK, remapResponse(set))
}

func (c *LoadsAPIController) DeleteRemap(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	field, ok := remapField(w, r)
	if !ok {
		return
	}

	if err := c.remaps.Delete(r.Context(), tenantID, composables.UseUserID(r.Context()), field); err != nil {
		writeRemapError(w, field, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (c *LoadsAPIController) ListRuns(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	query, err := composables.UseQuery(&dtos.RunListQuery{}, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "LOADS_INVALID_QUERY", "invalid query parameters")
		return
	}
	if !validateRequest(w, query) {
		return
	}

	runs, err := c.runs.Recent(r.Context(), query.Limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "LOADS_INTERNAL", "internal error")
		return
	}

	out := dtos.RunListResponse{Data: make([]dtos.RunResponse, 0, len(runs)), Total: len(runs)}
	for _, run := range runs {
		out.Data = append(out.Data, dtos.RunResponse{
			ID:           run.ID().String(),
			SheetID:      run.SheetID(),
			OK:           run.OK(),
			AnalyzedRows: run.AnalyzedRows(),
			Issues:       run.IssueCount(),
			Errors:       run.ErrorCount(),
			CreatedAt:    run.CreatedAt().UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// requireTenant resolves the tenant placed in context by the identity
// middleware. A missing tenant means the request bypassed the stack.
func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "LOADS_TENANT_MISSING", "tenant not resolved")
		return uuid.Nil, false
	}
	return tenantID, true
}

// callerIdentity keys the per-caller analysis gate: the user id when one was
// supplied, the client IP otherwise.
func callerIdentity(r *http.Request) string {
	if userID := composables.UseUserID(r.Context()); userID != uuid.Nil {
		return userID.String()
	}
	if ip, ok := composables.UseIP(r.Context()); ok {
		return ip
	}
	return ""
}

func remapField(w http.ResponseWriter, r *http.Request) (load.Field, bool) {
	field, ok := load.FieldNamed(mux.Vars(r)["field"])
	if !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "LOADS_UNKNOWN_FIELD",
			"unknown canonical field "+strconv.Quote(mux.Vars(r)["field"]))
		return "", false
	}
	return field, true
}

func remapResponse(set remap.Set) dtos.RemapResponse {
	return dtos.RemapResponse{
		Field:     string(set.Field()),
		Entries:   set.Entries(),
		UpdatedAt: set.UpdatedAt().UTC().Format(time.RFC3339),
	}
}

func fieldOverrides(raw map[string]string) (map[string]load.Field, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]load.Field, len(raw))
	for header, name := range raw {
		f, ok := load.FieldNamed(name)
		if !ok {
			return nil, errors.New("unknown canonical field " + strconv.Quote(name) + " for header " + strconv.Quote(header))
		}
		out[header] = f
	}
	return out, nil
}

// validateRequest checks the DTO's validate tags and reports the first
// failing field when the payload does not pass.
func validateRequest(w http.ResponseWriter, req interface{}) bool {
	err := constants.Validate.Struct(req)
	if err == nil {
		return true
	}
	message := "validation failed"
	meta := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for field, fieldErr := range serrors.ProcessValidatorErrors(verrs) {
			message = fieldErr.Message
			meta["field"] = field
			break
		}
	}
	writeJSONError(w, http.StatusUnprocessableEntity, "LOADS_VALIDATION_FAILED", message, meta)
	return false
}

func writeSheetError(w http.ResponseWriter, sheetID string, err error) {
	switch {
	case errors.Is(err, grid.ErrSheetNotFound):
		writeJSONError(w, http.StatusNotFound, "LOADS_SHEET_NOT_FOUND",
			"sheet "+strconv.Quote(sheetID)+" not found")
	case errors.Is(err, grid.ErrTooFewRows):
		writeJSONError(w, http.StatusUnprocessableEntity, "LOADS_SHEET_EMPTY",
			"sheet needs a header row and at least one data row")
	default:
		writeJSONError(w, http.StatusInternalServerError, "LOADS_INTERNAL", "internal error")
	}
}

func writeRemapError(w http.ResponseWriter, field load.Field, err error) {
	switch {
	case errors.Is(err, remap.ErrUnsupportedField):
		writeJSONError(w, http.StatusUnprocessableEntity, "LOADS_UNSUPPORTED_FIELD",
			"field "+strconv.Quote(string(field))+" does not support remaps")
	case errors.Is(err, remap.ErrRemapNotFound):
		writeJSONError(w, http.StatusNotFound, "LOADS_REMAP_NOT_FOUND",
			"no remap saved for field "+strconv.Quote(string(field)))
	default:
		writeJSONError(w, http.StatusInternalServerError, "LOADS_INTERNAL", "internal error")
	}
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
