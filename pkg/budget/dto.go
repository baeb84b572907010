package budget

import (
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/shopspring/decimal"
)

// RecordDTO is the wire form of Record used by the backend REST contract.
type RecordDTO struct {
	BudgetPlanId    int     `json:"budgetPlanId"`
	ProjectId       int     `json:"projectId"`
	EmployeeId      int     `json:"employeeId"`
	MonthId         int     `json:"monthId"`
	StatusId        int     `json:"statusId"`
	BudgetAllocated float64 `json:"budgetAllocated"`
	HoursPlanned    float64 `json:"hoursPlanned"`
	Comments        string  `json:"comments"`
	Cost            float64 `json:"cost,omitempty"`
}

// ViewDTO is the denormalized wire form returned by /GetAllBudget.
type ViewDTO struct {
	RecordDTO
	ProjectName  string `json:"projectName"`
	EmployeeName string `json:"employeeName"`
	Month        string `json:"month"`
	StatusName   string `json:"statusName"`
}

type ReferenceItemDTO struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

func RecordToDTO(r Record) RecordDTO {
	return RecordDTO{
		BudgetPlanId:    int(r.BudgetPlanId),
		ProjectId:       r.ProjectId,
		EmployeeId:      r.EmployeeId,
		MonthId:         r.MonthId,
		StatusId:        r.StatusId,
		BudgetAllocated: r.BudgetAllocated.InexactFloat64(),
		HoursPlanned:    r.HoursPlanned.InexactFloat64(),
		Comments:        r.Comments,
		Cost:            r.Cost.InexactFloat64(),
	}
}

func DTOToRecord(dto RecordDTO) Record {
	return Record{
		BudgetPlanId:    PlanId(dto.BudgetPlanId),
		ProjectId:       dto.ProjectId,
		EmployeeId:      dto.EmployeeId,
		MonthId:         dto.MonthId,
		StatusId:        dto.StatusId,
		BudgetAllocated: decimal.NewFromFloat(dto.BudgetAllocated),
		HoursPlanned:    decimal.NewFromFloat(dto.HoursPlanned),
		Comments:        dto.Comments,
		Cost:            decimal.NewFromFloat(dto.Cost),
	}
}

func ViewToDTO(v View) ViewDTO {
	return ViewDTO{
		RecordDTO:    RecordToDTO(v.Record),
		ProjectName:  v.ProjectName,
		EmployeeName: v.EmployeeName,
		Month:        v.Month,
		StatusName:   v.StatusName,
	}
}

func DTOToView(dto ViewDTO) View {
	return View{
		Record:       DTOToRecord(dto.RecordDTO),
		ProjectName:  dto.ProjectName,
		EmployeeName: dto.EmployeeName,
		Month:        dto.Month,
		StatusName:   dto.StatusName,
	}
}

func ItemToDTO(item reference.Item) ReferenceItemDTO {
	return ReferenceItemDTO{Id: item.Id, Name: item.Name}
}

func DTOToItem(dto ReferenceItemDTO) reference.Item {
	return reference.Item{Id: dto.Id, Name: dto.Name}
}
