package zone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateZone checks that a zone is structurally valid.
func ValidateZone(z *Zone) error {
	if z == nil {
		return fmt.Errorf("%w: nil zone", ErrInvalidZone)
	}
	if strings.TrimSpace(z.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	if !slugPattern.MatchString(z.Slug) {
		return fmt.Errorf("%w: slug %q must be lowercase alphanumeric with hyphens", ErrInvalidZone, z.Slug)
	}
	return nil
}

// GenerateID generates a new unique zone identifier.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateSlug derives a URL-safe slug from a display name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
