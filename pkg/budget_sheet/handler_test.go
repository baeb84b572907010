package budget_sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/empbudget/budgetgrid/internal/event_bus"
	"github.com/empbudget/budgetgrid/internal/rest"
	"github.com/empbudget/budgetgrid/internal/utils"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/budget_api"
	"github.com/empbudget/budgetgrid/pkg/google_sheets"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type googleReaderStub struct {
	rows []map[string]string
	err  error
}

func (g *googleReaderStub) ReadRows(ctx context.Context, spreadsheetId string, sheetRange string) ([]map[string]string, error) {
	return g.rows, g.err
}

func setupHandler(t *testing.T, google google_sheets.Reader) (*mux.Router, *budget_api.ClientStub) {
	t.Helper()
	stub := newStub()
	service := NewBudgetSheetService(stub, event_bus.NewEventBus(), options(SyncBulk))
	clock := &utils.FixedClock{At: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)}
	handler := NewHandler(service, google, clock)

	router := mux.NewRouter()
	router.HandleFunc("/api/sheet", handler.GetSheet).Methods("GET")
	router.HandleFunc("/api/sheet/reload", handler.Reload).Methods("POST")
	router.HandleFunc("/api/sheet/edit-mode", handler.SetEditMode).Methods("PUT")
	router.HandleFunc("/api/sheet/change", handler.CaptureChange).Methods("POST")
	router.HandleFunc("/api/sheet/selection", handler.Selection).Methods("POST")
	router.HandleFunc("/api/sheet/save", handler.Save).Methods("POST")
	router.HandleFunc("/api/sheet/delete", handler.DeleteSelected).Methods("POST")
	router.HandleFunc("/api/sheet/row/{id}", handler.DeleteRow).Methods("DELETE")
	router.HandleFunc("/api/sheet/import", handler.Import).Methods("POST")
	router.HandleFunc("/api/sheet/import/google", handler.ImportGoogle).Methods("POST")
	router.HandleFunc("/api/sheet/export", handler.Export).Methods("GET")
	return router, stub
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func headerCells() []any {
	header := make([]any, 0, budget.ColumnCount)
	for _, title := range budget.Titles() {
		header = append(header, title)
	}
	return header
}

func TestHandler_GetSheet(t *testing.T) {
	router, _ := setupHandler(t, nil)

	rr := doRequest(router, "GET", "/api/sheet", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var sheet SheetDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sheet))
	assert.False(t, sheet.Editable)
	require.Len(t, sheet.Workbook.Sheets, 1)
	assert.Len(t, sheet.Workbook.Sheets[0].Rows, 5)
}

func TestHandler_LoadFailure(t *testing.T) {
	router, stub := setupHandler(t, nil)
	stub.SetListEmployeesError(errors.New("down"))

	rr := doRequest(router, "POST", "/api/sheet/reload", nil)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	var response rest.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "unable to load employees", response.Error)
}

func TestHandler_EditAndSave(t *testing.T) {
	// given
	router, stub := setupHandler(t, nil)
	cells := [][]any{
		headerCells(),
		{nil, "Globex", "Jane", "Jan", "Planned", 300, 4, "from the grid", nil},
	}

	// when read-only
	rr := doRequest(router, "POST", "/api/sheet/change", ChangeDTO{Cells: cells})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// and then in edit mode
	rr = doRequest(router, "PUT", "/api/sheet/edit-mode", EditModeDTO{Editable: true})
	require.Equal(t, http.StatusOK, rr.Code)
	var sheet SheetDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sheet))
	assert.True(t, sheet.Editable)

	rr = doRequest(router, "POST", "/api/sheet/change", ChangeDTO{Cells: cells})
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = doRequest(router, "POST", "/api/sheet/save", nil)

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var result SaveResultDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "saved", result.Status)
	assert.Equal(t, 1, result.Created)
	require.Len(t, stub.Upserted(), 1)
	assert.Equal(t, "from the grid", stub.Upserted()[0][0].Comments)
}

func TestHandler_SaveValidationErrors(t *testing.T) {
	// given
	router, stub := setupHandler(t, nil)
	doRequest(router, "PUT", "/api/sheet/edit-mode", EditModeDTO{Editable: true})
	cells := [][]any{
		headerCells(),
		{nil, "Globex", "", "Jan", "Planned", 300, 4, "", nil},
	}
	doRequest(router, "POST", "/api/sheet/change", ChangeDTO{Cells: cells})

	// when
	rr := doRequest(router, "POST", "/api/sheet/save", nil)

	// then
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Missing required dropdown values.")
	assert.Contains(t, rr.Body.String(), `"rowIndex":1`)
	assert.Equal(t, 0, stub.TotalMutations())
}

func TestHandler_SaveFailure(t *testing.T) {
	router, stub := setupHandler(t, nil)
	doRequest(router, "PUT", "/api/sheet/edit-mode", EditModeDTO{Editable: true})
	doRequest(router, "POST", "/api/sheet/change", ChangeDTO{Cells: [][]any{
		headerCells(),
		{nil, "Acme", "Jane", "Jan", "Planned", 1, 1, "", nil},
	}})
	stub.SetBulkUpsertError(errors.New("boom"))

	rr := doRequest(router, "POST", "/api/sheet/save", nil)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "operationId")
}

func TestHandler_SelectionAndDelete(t *testing.T) {
	router, stub := setupHandler(t, nil)
	doRequest(router, "GET", "/api/sheet", nil)

	t.Run("selection", func(t *testing.T) {
		rr := doRequest(router, "POST", "/api/sheet/selection", SelectionDTO{Refs: []string{"B3"}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ids":[102]}`, rr.Body.String())
	})

	t.Run("invalid reference", func(t *testing.T) {
		rr := doRequest(router, "POST", "/api/sheet/selection", SelectionDTO{Refs: []string{"3B"}})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("nothing selected", func(t *testing.T) {
		rr := doRequest(router, "POST", "/api/sheet/delete", SelectionDTO{Refs: []string{"A1:I1"}})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, stub.Calls("BulkDelete"))
	})

	t.Run("delete", func(t *testing.T) {
		rr := doRequest(router, "POST", "/api/sheet/delete", SelectionDTO{Refs: []string{"A2:A3"}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ids":[101,102]}`, rr.Body.String())
		assert.Equal(t, [][]budget.PlanId{{101, 102}}, stub.BulkDeleted())
	})
}

func TestHandler_DeleteRow(t *testing.T) {
	router, stub := setupHandler(t, nil)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, "DELETE", "/api/sheet/row/abc", nil).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, "DELETE", "/api/sheet/row/101", nil).Code)
	assert.Equal(t, []budget.PlanId{101}, stub.DeletedOnes())

	stub.SetDeleteBudgetError(errors.New("gone"))
	assert.Equal(t, http.StatusBadGateway, doRequest(router, "DELETE", "/api/sheet/row/102", nil).Code)
}

func TestHandler_ImportFile(t *testing.T) {
	upload := func(filename, content string) *httptest.ResponseRecorder {
		router, _ := setupHandler(t, nil)
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest("POST", "/api/sheet/import", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("csv", func(t *testing.T) {
		rr := upload("plan.csv", "Project,Employee,Month,Status,Budget,Hours\nAcme,Jane,Jan,Approved,50,1\n")

		require.Equal(t, http.StatusOK, rr.Code)
		var result SaveResultDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Created)
	})

	t.Run("unsupported file", func(t *testing.T) {
		rr := upload("plan.ods", "whatever")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid rows", func(t *testing.T) {
		rr := upload("plan.csv", "Project,Budget\nAcme,-1\n")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}

func TestHandler_ImportGoogle(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		router, _ := setupHandler(t, nil)

		rr := doRequest(router, "POST", "/api/sheet/import/google", GoogleImportDTO{SpreadsheetId: "x", Range: "A1:I"})

		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("imports rows", func(t *testing.T) {
		reader := &googleReaderStub{rows: []map[string]string{
			{"Project": "Globex", "Employee": "Jane", "Month": "Jan", "Status": "Planned", "Budget": "75", "Hours": "3"},
		}}
		router, stub := setupHandler(t, reader)

		rr := doRequest(router, "POST", "/api/sheet/import/google", GoogleImportDTO{SpreadsheetId: "x", Range: "A1:I"})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 1, stub.Calls("BulkUpsert"))
	})

	t.Run("missing range", func(t *testing.T) {
		router, _ := setupHandler(t, &googleReaderStub{})

		rr := doRequest(router, "POST", "/api/sheet/import/google", GoogleImportDTO{SpreadsheetId: "x"})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("google failure", func(t *testing.T) {
		router, _ := setupHandler(t, &googleReaderStub{err: errors.New("403")})

		rr := doRequest(router, "POST", "/api/sheet/import/google", GoogleImportDTO{SpreadsheetId: "x", Range: "A1:I"})

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestHandler_Export(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		router, _ := setupHandler(t, nil)

		rr := doRequest(router, "GET", "/api/sheet/export?format=csv", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
		assert.Equal(t, `attachment; filename="budget_plan_2026-03-07.csv"`, rr.Header().Get("Content-Disposition"))
		lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
		assert.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "BudgetPlanId,Project Name"))
	})

	t.Run("xlsx by default", func(t *testing.T) {
		router, _ := setupHandler(t, nil)

		rr := doRequest(router, "GET", "/api/sheet/export", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="budget_plan_2026-03-07.xlsx"`, rr.Header().Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))
	})

	t.Run("unknown format", func(t *testing.T) {
		router, _ := setupHandler(t, nil)

		rr := doRequest(router, "GET", "/api/sheet/export?format=ods", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
