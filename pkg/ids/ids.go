// Package ids generates the opaque tokens used for cart lines, order numbers
// and uploaded file names.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

const OrderPrefix = "BISTRO-"

// Token returns a random uuid v4 as 32 lowercase hex characters.
func Token() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}

// OrderID returns OrderPrefix followed by six uppercase hex characters.
// Uniqueness is not checked; with 24 random bits a collision is possible but
// callers accept that.
func OrderID() string {
	return OrderPrefix + strings.ToUpper(Token()[:6])
}
