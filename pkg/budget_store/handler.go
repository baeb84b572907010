package budget_store

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/empbudget/budgetgrid/internal/rest"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ReferenceRequestDTO struct {
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourlyRate,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

// GetAllBudget godoc
// @Summary List budget plan records
// @Description Every record joined with its reference names. Optional query parameters filter, sort and page the list.
// @Tags BudgetStore
// @Produce json
// @Param pageNumber query int false "1-based page number"
// @Param pageSize query int false "Records per page"
// @Param sortColumn query string false "budgetPlanId, projectName, employeeName, month, statusName, budgetAllocated, hoursPlanned or cost"
// @Param sortDirection query string false "asc or desc"
// @Param search query string false "Text searched in comments and names"
// @Param projectIds query string false "Comma separated project ids"
// @Param employeeIds query string false "Comma separated employee ids"
// @Param monthIds query string false "Comma separated month ids"
// @Param statusIds query string false "Comma separated status ids"
// @Param budgetMin query number false "Lower budget bound"
// @Param budgetMax query number false "Upper budget bound"
// @Param hoursMin query number false "Lower hours bound"
// @Param hoursMax query number false "Upper hours bound"
// @Success 200 {array} budget.ViewDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /GetAllBudget [get]
func (h *Handler) GetAllBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing budget plans")
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	views, err := h.service.FindBudgets(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]budget.ViewDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, budget.ViewToDTO(v))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetAllProjects godoc
// @Summary List projects
// @Tags BudgetStore
// @Produce json
// @Success 200 {array} budget.ReferenceItemDTO
// @Router /GetAllProjects [get]
func (h *Handler) GetAllProjects(w http.ResponseWriter, r *http.Request) {
	h.listReference(w, r, reference.Project)
}

// GetAllEmployees godoc
// @Summary List employees
// @Tags BudgetStore
// @Produce json
// @Success 200 {array} budget.ReferenceItemDTO
// @Router /GetAllEmployees [get]
func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	h.listReference(w, r, reference.Employee)
}

// GetAllMonths godoc
// @Summary List months
// @Tags BudgetStore
// @Produce json
// @Success 200 {array} budget.ReferenceItemDTO
// @Router /GetAllMonths [get]
func (h *Handler) GetAllMonths(w http.ResponseWriter, r *http.Request) {
	h.listReference(w, r, reference.Month)
}

// GetAllStatus godoc
// @Summary List statuses
// @Tags BudgetStore
// @Produce json
// @Success 200 {array} budget.ReferenceItemDTO
// @Router /GetAllStatus [get]
func (h *Handler) GetAllStatus(w http.ResponseWriter, r *http.Request) {
	h.listReference(w, r, reference.Status)
}

func (h *Handler) listReference(w http.ResponseWriter, r *http.Request, kind reference.Kind) {
	log.Debugf("Listing %s lookups", kind)
	var items []reference.Item
	var err error
	switch kind {
	case reference.Project:
		items, err = h.service.ListProjects(r.Context())
	case reference.Employee:
		items, err = h.service.ListEmployees(r.Context())
	case reference.Month:
		items, err = h.service.ListMonths(r.Context())
	case reference.Status:
		items, err = h.service.ListStatuses(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]budget.ReferenceItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, budget.ItemToDTO(item))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// AddBudget godoc
// @Summary Create a budget plan record
// @Description The backend assigns the id; any id in the body is ignored.
// @Tags BudgetStore
// @Accept json
// @Produce json
// @Param record body budget.RecordDTO true "Budget plan record"
// @Success 201 {object} budget.RecordDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /AddBudget [post]
func (h *Handler) AddBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Adding budget plan")
	var dto budget.RecordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", nil)
		return
	}

	created, err := h.service.AddBudget(r.Context(), budget.DTOToRecord(dto))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, budget.RecordToDTO(created))
}

// DeleteBudget godoc
// @Summary Delete one budget plan record
// @Tags BudgetStore
// @Param id path int true "Budget plan id"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /DeleteBudget/{id} [delete]
func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Deleting budget plan")
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid budget plan id", nil)
		return
	}

	if err := h.service.DeleteBudget(r.Context(), budget.PlanId(id)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete godoc
// @Summary Delete several budget plan records atomically
// @Description Fails without deleting anything when any id does not exist.
// @Tags BudgetStore
// @Accept json
// @Param ids body []int true "Budget plan ids"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /BulkDelete [post]
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	log.Debug("Bulk deleting budget plans")
	var raw []int
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", nil)
		return
	}

	ids := make([]budget.PlanId, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, budget.PlanId(id))
	}
	if err := h.service.BulkDelete(r.Context(), ids); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpsert godoc
// @Summary Create and update budget plan records in one transaction
// @Description Records with id 0 are created, the others updated.
// @Tags BudgetStore
// @Accept json
// @Param records body []budget.RecordDTO true "Budget plan records"
// @Success 204
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /BulkUpsert [post]
func (h *Handler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	log.Debug("Bulk upserting budget plans")
	var dtos []budget.RecordDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", nil)
		return
	}

	records := make([]budget.Record, 0, len(dtos))
	for _, dto := range dtos {
		records = append(records, budget.DTOToRecord(dto))
	}
	if err := h.service.BulkUpsert(r.Context(), records); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddReference godoc
// @Summary Add a project, employee, month or status
// @Tags BudgetStore
// @Accept json
// @Produce json
// @Param kind path string true "project, employee, month or status"
// @Param item body ReferenceRequestDTO true "Lookup entry"
// @Success 201 {object} budget.ReferenceItemDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /AddReference/{kind} [post]
func (h *Handler) AddReference(w http.ResponseWriter, r *http.Request) {
	kind := reference.Kind(mux.Vars(r)["kind"])
	log.Debugf("Adding %s lookup", kind)
	var dto ReferenceRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", nil)
		return
	}

	item, err := h.service.AddReference(r.Context(), kind, dto.Name, decimal.NewFromFloat(dto.HourlyRate))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, budget.ItemToDTO(item))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidBudget), errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrUnknownReferenceKind):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrBudgetNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), nil)
	default:
		log.Errorf("unexpected budget store error: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
