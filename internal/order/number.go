package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	OrderNumberPrefix = "HLB"
	// Excludes O, 0, I, 1, Z and 2.
	OrderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXY3456789"
	orderNumberSuffix   = 4
)

// NumberGenerator returns a candidate order number for an order created at now.
type NumberGenerator func(now time.Time) (string, error)

// GenerateOrderNumber returns HLB-YYYYMMDD-XXXX using now's calendar date.
// Uniqueness is enforced by the order_number unique index, not here.
func GenerateOrderNumber(now time.Time) (string, error) {
	max := big.NewInt(int64(len(OrderNumberAlphabet)))
	suffix := make([]byte, orderNumberSuffix)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix[i] = OrderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", OrderNumberPrefix, now.Format("20060102"), suffix), nil
}
