package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// InvoiceLockKey builds the redis key guarding mutations of one invoice.
func InvoiceLockKey(id uuid.UUID) string {
	return fmt.Sprintf("backoffice:invoice:%s:lock", id)
}
