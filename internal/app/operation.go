package app

// Status values of a finished maintenance operation.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MaintenanceOperation tracks a CLI command that may change history or
// live objects. Operations start in memory with ID=0; only mutating
// commands persist them, which assigns an auto-increment ID.
type MaintenanceOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
}

// NewMaintenanceOperation creates a new in-memory operation.
func NewMaintenanceOperation(operation, parameters string) *MaintenanceOperation {
	return &MaintenanceOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *MaintenanceOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed if err is non-nil.
func (op *MaintenanceOperation) Fail(err error) {
	if err != nil {
		op.Status = StatusError
	}
}
