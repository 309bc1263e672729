package paystack

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference generates a unique gateway-facing transaction reference,
// e.g. OC_1756400000_9f3a1c2d4e5f.
func NewReference(prefix string) string {
	if prefix == "" {
		prefix = "OC"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().Unix(), id)
}

// NewRefundReference is the fallback refund reference when the gateway does
// not return one.
func NewRefundReference() string {
	return "refund_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
