package budget_sheet

import (
	"errors"
	"fmt"

	"github.com/empbudget/budgetgrid/pkg/budget"
)

var (
	ErrBusy            = errors.New("another save, delete or import is in progress")
	ErrReadOnly        = errors.New("the sheet is not in edit mode")
	ErrNothingSelected = errors.New("no saved rows are selected")
)

// SaveError reports a failed push of a valid batch. The sheet keeps its edit mode and
// the latest snapshot, so the user can retry.
type SaveError struct {
	OperationId string
	Mode        SyncMode
	Err         error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving budget changes failed (%s): %v", e.Mode, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// BulkDeleteError reports a rejected bulk delete. Nothing was deleted.
type BulkDeleteError struct {
	Ids []budget.PlanId
	Err error
}

func (e *BulkDeleteError) Error() string {
	return fmt.Sprintf("deleting %d budget record(s) failed: %v", len(e.Ids), e.Err)
}

func (e *BulkDeleteError) Unwrap() error {
	return e.Err
}

// DeleteError reports a failed single row delete.
type DeleteError struct {
	Id  budget.PlanId
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("deleting budget record %d failed: %v", e.Id, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}
