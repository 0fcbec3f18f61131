package gateway

import (
	"strings"

	"github.com/google/uuid"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/listing"
)

// Validation constants for list queries
const (
	// MaxPageLimit is the maximum allowed page size to prevent resource exhaustion
	MaxPageLimit = 1000
	// MinPageLimit is the minimum allowed page size
	MinPageLimit = 1
)

// AllowedNoteOrderBy is the whitelist of valid sort fields for notes
var AllowedNoteOrderBy = map[string]bool{
	"":           true, // empty means default ordering
	"created_at": true,
	"updated_at": true,
	"title":      true,
}

// AllowedTodoOrderBy is the whitelist of valid sort fields for todos
var AllowedTodoOrderBy = map[string]bool{
	"":           true,
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"level":      true,
}

// AllowedPhotoOrderBy is the whitelist of valid sort fields for photos
var AllowedPhotoOrderBy = map[string]bool{
	"":            true,
	"name":        true,
	"upload_date": true,
}

// AllowedOrderDir is the whitelist of valid sort directions
var AllowedOrderDir = map[string]bool{
	"":     true, // empty means default direction
	"asc":  true,
	"desc": true,
}

// ValidateOrderBy returns value if allowed, otherwise the empty string
// (default ordering).
func ValidateOrderBy(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}
	return ""
}

// ValidateOrderDir returns value if allowed, otherwise the empty string.
func ValidateOrderDir(value string) string {
	if AllowedOrderDir[value] {
		return value
	}
	return ""
}

// ValidateLimit ensures limit is within acceptable bounds.
func ValidateLimit(limit int) int {
	if limit < MinPageLimit {
		return MinPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// ValidateOffset ensures offset is non-negative.
func ValidateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// listParams converts a listing query into store parameters for userID.
func listParams(userID uuid.UUID, q listing.Query, allowed map[string]bool) driver.ListParams {
	return driver.ListParams{
		UserID:   userID,
		Search:   strings.TrimSpace(q.Filter),
		OrderBy:  ValidateOrderBy(q.Sort.Field, allowed),
		OrderDir: ValidateOrderDir(strings.ToLower(string(q.Sort.Dir))),
		Limit:    ValidateLimit(q.Limit),
		Offset:   ValidateOffset(q.Offset),
	}
}
