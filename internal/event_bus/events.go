package event_bus

const (
	BudgetStoreChanged EventType = "budget_store.changed"
	BudgetSheetSaved   EventType = "budget_sheet.saved"
	BudgetSheetDeleted EventType = "budget_sheet.deleted"
)

// StoreChange is published by the budget store after every committed mutation.
type StoreChange struct {
	Operation string
	Ids       []int
}

// SheetSaved is published by the sheet after a successful save.
type SheetSaved struct {
	OperationId string
	Created     int
	Updated     int
	Unchanged   int
}

// SheetDeleted is published by the sheet after a successful delete.
type SheetDeleted struct {
	OperationId string
	Ids         []int
}
