package helpers

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxReceiptLength is the longest receipt the payment gateway accepts.
const MaxReceiptLength = 40

// NewReceipt builds a per-request receipt: rcpt_<base36 millis>_<12 hex>.
func NewReceipt(now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	receipt := "rcpt_" + stamp + "_" + suffix
	if len(receipt) > MaxReceiptLength {
		receipt = receipt[:MaxReceiptLength]
	}
	return receipt
}
