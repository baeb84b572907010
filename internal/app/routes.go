package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Budget store, served on the paths the sheet client expects
	r.HandleFunc("/GetAllBudget", deps.BudgetStoreHandler.GetAllBudget).Methods("GET")
	r.HandleFunc("/GetAllProjects", deps.BudgetStoreHandler.GetAllProjects).Methods("GET")
	r.HandleFunc("/GetAllEmployees", deps.BudgetStoreHandler.GetAllEmployees).Methods("GET")
	r.HandleFunc("/GetAllMonths", deps.BudgetStoreHandler.GetAllMonths).Methods("GET")
	r.HandleFunc("/GetAllStatus", deps.BudgetStoreHandler.GetAllStatus).Methods("GET")
	r.HandleFunc("/AddBudget", deps.BudgetStoreHandler.AddBudget).Methods("POST")
	r.HandleFunc("/DeleteBudget/{id}", deps.BudgetStoreHandler.DeleteBudget).Methods("DELETE")
	r.HandleFunc("/BulkDelete", deps.BudgetStoreHandler.BulkDelete).Methods("POST")
	r.HandleFunc("/BulkUpsert", deps.BudgetStoreHandler.BulkUpsert).Methods("POST")
	r.HandleFunc("/AddReference/{kind}", deps.BudgetStoreHandler.AddReference).Methods("POST")

	// Budget sheet
	r.HandleFunc("/api/sheet", deps.BudgetSheetHandler.GetSheet).Methods("GET")
	r.HandleFunc("/api/sheet/reload", deps.BudgetSheetHandler.Reload).Methods("POST")
	r.HandleFunc("/api/sheet/edit-mode", deps.BudgetSheetHandler.SetEditMode).Methods("PUT")
	r.HandleFunc("/api/sheet/change", deps.BudgetSheetHandler.CaptureChange).Methods("POST")
	r.HandleFunc("/api/sheet/selection", deps.BudgetSheetHandler.Selection).Methods("POST")
	r.HandleFunc("/api/sheet/save", deps.BudgetSheetHandler.Save).Methods("POST")
	r.HandleFunc("/api/sheet/delete", deps.BudgetSheetHandler.DeleteSelected).Methods("POST")
	r.HandleFunc("/api/sheet/row/{id}", deps.BudgetSheetHandler.DeleteRow).Methods("DELETE")
	r.HandleFunc("/api/sheet/import", deps.BudgetSheetHandler.Import).Methods("POST")
	r.HandleFunc("/api/sheet/import/google", deps.BudgetSheetHandler.ImportGoogle).Methods("POST")
	r.HandleFunc("/api/sheet/export", deps.BudgetSheetHandler.Export).Methods("GET")
}
