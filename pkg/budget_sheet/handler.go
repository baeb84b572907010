package budget_sheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/empbudget/budgetgrid/internal/rest"
	"github.com/empbudget/budgetgrid/internal/utils"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/google_sheets"
	"github.com/empbudget/budgetgrid/pkg/reconcile"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/empbudget/budgetgrid/pkg/selection"
	"github.com/empbudget/budgetgrid/pkg/spreadsheet"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	maxUploadSize  = 10 << 20
	exportBaseName = "budget_plan"
)

type Handler struct {
	service Service
	google  google_sheets.Reader
	clock   utils.Clock
}

// NewHandler creates the sheet handler. google may be nil when no credentials are
// configured; Google imports then answer 501.
func NewHandler(service Service, google google_sheets.Reader, clock utils.Clock) *Handler {
	return &Handler{service: service, google: google, clock: clock}
}

// GetSheet godoc
// @Summary Current budget sheet
// @Description Workbook description for the grid widget, rebuilt from the loaded records.
// @Tags BudgetSheet
// @Produce json
// @Success 200 {object} SheetDTO
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet [get]
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting budget sheet")
	workbook, err := h.service.Workbook(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, SheetDTO{Editable: h.service.Editable(), Workbook: workbook})
}

// Reload godoc
// @Summary Reload records and lookups
// @Tags BudgetSheet
// @Produce json
// @Success 200 {object} SheetDTO
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log.Debug("Reloading budget sheet")
	if err := h.service.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.GetSheet(w, r)
}

// SetEditMode godoc
// @Summary Enter or leave edit mode
// @Tags BudgetSheet
// @Accept json
// @Produce json
// @Param mode body EditModeDTO true "Requested mode"
// @Success 200 {object} SheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/edit-mode [put]
func (h *Handler) SetEditMode(w http.ResponseWriter, r *http.Request) {
	var mode EditModeDTO
	if !decodeBody(w, r, &mode) {
		return
	}
	log.Debugf("Setting edit mode to %t", mode.Editable)
	workbook, err := h.service.SetEditMode(r.Context(), mode.Editable)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, SheetDTO{Editable: mode.Editable, Workbook: workbook})
}

// CaptureChange godoc
// @Summary Report the grid content after an edit
// @Description The full cell matrix including the header row. Only accepted in edit mode.
// @Tags BudgetSheet
// @Accept json
// @Param change body ChangeDTO true "Cell values"
// @Success 204
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/sheet/change [post]
func (h *Handler) CaptureChange(w http.ResponseWriter, r *http.Request) {
	var change ChangeDTO
	if !decodeBody(w, r, &change) {
		return
	}
	if err := h.service.CaptureChange(change.Cells); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Selection godoc
// @Summary Budget plan ids covered by a selection
// @Tags BudgetSheet
// @Accept json
// @Produce json
// @Param selection body SelectionDTO true "Selected ranges"
// @Success 200 {object} IdsDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/sheet/selection [post]
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	ranges, ok := decodeSelection(w, r)
	if !ok {
		return
	}
	rest.WriteJSON(w, http.StatusOK, idsToDTO(h.service.SelectedIds(ranges)))
}

// Save godoc
// @Summary Save the captured changes
// @Tags BudgetSheet
// @Produce json
// @Success 200 {object} SaveResultDTO
// @Failure 409 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	log.Debug("Saving budget sheet")
	result, err := h.service.Save(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, saveResultToDTO(result))
}

// DeleteSelected godoc
// @Summary Delete the selected rows
// @Tags BudgetSheet
// @Accept json
// @Produce json
// @Param selection body SelectionDTO true "Selected ranges"
// @Success 200 {object} IdsDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 409 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/delete [post]
func (h *Handler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	ranges, ok := decodeSelection(w, r)
	if !ok {
		return
	}
	ids, err := h.service.DeleteSelected(r.Context(), ranges)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, idsToDTO(ids))
}

// DeleteRow godoc
// @Summary Delete one budget plan
// @Tags BudgetSheet
// @Param id path int true "Budget plan id"
// @Success 204
// @Failure 400 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/row/{id} [delete]
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid budget plan id", nil)
		return
	}
	if err := h.service.DeleteOne(r.Context(), budget.PlanId(id)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import godoc
// @Summary Import an xlsx or csv file
// @Description Rows are matched to columns by header text and saved like an edit.
// @Tags BudgetSheet
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx or csv file"
// @Success 200 {object} SaveResultDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/sheet/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "file is required", nil)
		return
	}
	defer file.Close()

	format, err := spreadsheet.ParseFormat(header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Debugf("Importing %s (%s)", header.Filename, format)
	rows, err := spreadsheet.ReadRows(file, format)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
			writeError(w, err)
			return
		}
		rest.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unable to read %s", header.Filename), nil)
		return
	}
	h.importRows(w, r, rows)
}

// ImportGoogle godoc
// @Summary Import a Google sheet range
// @Tags BudgetSheet
// @Accept json
// @Produce json
// @Param source body GoogleImportDTO true "Spreadsheet id and A1 range"
// @Success 200 {object} SaveResultDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 501 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/import/google [post]
func (h *Handler) ImportGoogle(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		rest.WriteError(w, http.StatusNotImplemented, google_sheets.ErrNotConfigured.Error(), nil)
		return
	}
	var source GoogleImportDTO
	if !decodeBody(w, r, &source) {
		return
	}
	if source.SpreadsheetId == "" || source.Range == "" {
		rest.WriteError(w, http.StatusBadRequest, "spreadsheetId and range are required", nil)
		return
	}
	rows, err := h.google.ReadRows(r.Context(), source.SpreadsheetId, source.Range)
	if err != nil {
		rest.WriteError(w, http.StatusBadGateway, "unable to read google sheet", nil)
		return
	}
	h.importRows(w, r, rows)
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request, rows []map[string]string) {
	result, err := h.service.Import(r.Context(), rows)
	if err != nil {
		writeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, saveResultToDTO(result))
}

// Export godoc
// @Summary Download the budget plans
// @Tags BudgetSheet
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv,application/pdf
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} rest.ErrorResponse
// @Failure 502 {object} rest.ErrorResponse
// @Router /api/sheet/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := spreadsheet.XLSX
	if requested := r.URL.Query().Get("format"); requested != "" {
		var err error
		if format, err = spreadsheet.ParseFormat(requested); err != nil {
			writeError(w, err)
			return
		}
	}
	records, err := h.service.Records(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.Write(&buf, format, records); err != nil {
		log.Errorf("failed to export budget plans as %s: %v", format, err)
		rest.WriteError(w, http.StatusInternalServerError, "export failed", nil)
		return
	}
	filename := utils.DatedFileName(h.clock, exportBaseName, string(format))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("failed to send export: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(into); err != nil {
		log.Debugf("invalid request body: %v", err)
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	return true
}

func decodeSelection(w http.ResponseWriter, r *http.Request) ([]selection.Range, bool) {
	var dto SelectionDTO
	if !decodeBody(w, r, &dto) {
		return nil, false
	}
	ranges, err := dto.toRanges()
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	return ranges, true
}

func idsToDTO(ids []budget.PlanId) IdsDTO {
	dto := IdsDTO{Ids: make([]int, 0, len(ids))}
	for _, id := range ids {
		dto.Ids = append(dto.Ids, int(id))
	}
	return dto
}

func writeError(w http.ResponseWriter, err error) {
	var validationErrors reconcile.ValidationErrors
	var fetchErr *reference.FetchError
	var saveErr *SaveError
	var bulkDeleteErr *BulkDeleteError
	var deleteErr *DeleteError

	switch {
	case errors.As(err, &validationErrors):
		rest.WriteError(w, http.StatusUnprocessableEntity, "the sheet has invalid rows", []reconcile.ValidationError(validationErrors))
	case errors.Is(err, ErrBusy), errors.Is(err, ErrReadOnly):
		rest.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrNothingSelected), errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &fetchErr):
		rest.WriteError(w, http.StatusBadGateway, fmt.Sprintf("unable to load %s", fetchErr.Source), nil)
	case errors.As(err, &saveErr):
		rest.WriteError(w, http.StatusBadGateway, "saving failed, your changes are kept", map[string]string{"operationId": saveErr.OperationId})
	case errors.As(err, &bulkDeleteErr), errors.As(err, &deleteErr):
		rest.WriteError(w, http.StatusBadGateway, "deleting failed", nil)
	default:
		log.Errorf("unexpected budget sheet error: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
