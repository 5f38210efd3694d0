package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Queue task IDs are restricted to letters, digits, and hyphens. Item
// identifiers are external catalog GIDs ("gid://shopify/Product/123") and
// carry characters outside that alphabet, so they are escaped before being
// folded into a task ID.
//
// The escaping is injective: every byte outside [A-Za-z0-9-] (including the
// underscore, which the escape sequences themselves use) becomes "_" plus
// two lowercase hex digits. Two distinct identifiers therefore can never
// sanitize to the same string.

// SanitizeID maps an arbitrary identifier onto the queue-safe alphabet.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))

	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}

	return b.String()
}

// AnalysisTaskID derives the deterministic task ID for analyzing one item
// within one job. Re-submitting the same (job, item) pair yields the same ID
// and is de-duplicated by the queue. The job UUID has a fixed length, so the
// job and item parts cannot bleed into each other.
func AnalysisTaskID(jobID uuid.UUID, itemID string) string {
	return "analyze-" + jobID.String() + "-" + SanitizeID(itemID)
}
