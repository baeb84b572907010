package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlanId_Persisted(t *testing.T) {
	assert.False(t, Unsaved.Persisted())
	assert.False(t, PlanId(-3).Persisted())
	assert.True(t, PlanId(42).Persisted())
}

func TestRecord_SameContent(t *testing.T) {
	base := Record{
		BudgetPlanId:    5,
		ProjectId:       1,
		EmployeeId:      2,
		MonthId:         3,
		StatusId:        4,
		BudgetAllocated: decimal.RequireFromString("1000.50"),
		HoursPlanned:    decimal.NewFromInt(10),
		Comments:        "kickoff",
		Cost:            decimal.NewFromInt(700),
	}

	t.Run("should ignore cost and decimal representation", func(t *testing.T) {
		other := base
		other.BudgetAllocated = decimal.NewFromFloat(1000.5)
		other.Cost = decimal.Zero

		assert.True(t, base.SameContent(other))
	})

	t.Run("should detect an edited field", func(t *testing.T) {
		other := base
		other.Comments = "kickoff moved"

		assert.False(t, base.SameContent(other))
	})
}

func TestColumnByHeader(t *testing.T) {
	tests := []struct {
		header   string
		expected int
		found    bool
	}{
		{header: "BudgetPlanId", expected: ColumnId, found: true},
		{header: " project name ", expected: ColumnProject, found: true},
		{header: "Hours", expected: ColumnHoursPlanned, found: true},
		{header: "Cost", expected: ColumnCost, found: true},
		{header: "Department", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			column, found := ColumnByHeader(tt.header)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expected, column.Index)
			}
		})
	}
}

func TestDTOToRecord(t *testing.T) {
	record := DTOToRecord(RecordDTO{
		BudgetPlanId:    12,
		ProjectId:       1,
		BudgetAllocated: 250.75,
		HoursPlanned:    4,
		Comments:        "n/a",
	})

	assert.Equal(t, PlanId(12), record.BudgetPlanId)
	assert.True(t, record.BudgetAllocated.Equal(decimal.RequireFromString("250.75")))
	assert.Equal(t, 250.75, RecordToDTO(record).BudgetAllocated)
}
