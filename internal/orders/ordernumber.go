package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXXXXXXXX. The suffix is the random
// tail of a UUIDv7; uniqueness is still enforced by the database.
func NewOrderNumber(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return "ORD-" + now.UTC().Format("20060102") + "-" + hex[len(hex)-12:]
}
