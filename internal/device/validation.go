package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
	maxSlugLength = 50
	slugPattern   = `^[a-z0-9]+(?:-[a-z0-9]+)*$`

	// Size limits for JSON fields to prevent memory exhaustion.
	maxStateKeys      = 100
	maxParamKeys      = 50
	maxStringValueLen = 1024

	maxLevel = 100
)

var slugRegex = regexp.MustCompile(slugPattern)

// validKinds is a pre-computed set for O(1) kind validation.
var validKinds = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		m[k] = struct{}{}
	}
	return m
}()

// ValidKind checks whether the given value is a recognised device kind.
func ValidKind(k Kind) bool {
	_, ok := validKinds[k]
	return ok
}

// ValidateDevice checks a device for structural validity before persisting.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidName, maxNameLength)
	}

	if d.Slug == "" || len(d.Slug) > maxSlugLength || !slugRegex.MatchString(d.Slug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, d.Slug)
	}

	if !ValidKind(d.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}

	if err := validateStateMap(d.CommittedState); err != nil {
		return err
	}

	return nil
}

// ValidateAction checks an action name and parameter payload against a
// device kind's accepted action set. This runs before any transport call
// so an invalid command never reaches the device.
func ValidateAction(kind Kind, action string, params map[string]any) error {
	if !kind.Accepts(action) {
		return fmt.Errorf("%w: kind %q does not accept action %q", ErrInvalidAction, kind, action)
	}

	if len(params) > maxParamKeys {
		return fmt.Errorf("%w: too many parameters (%d)", ErrInvalidAction, len(params))
	}

	// Per-action parameter shape checks. Payloads are otherwise opaque;
	// the protocol bridge owns the full device-specific validation.
	switch action {
	case ActionSetLevel:
		level, ok := numericParam(params, "level")
		if !ok {
			return fmt.Errorf("%w: %q requires numeric parameter \"level\"", ErrInvalidAction, action)
		}
		if level < 0 || level > maxLevel {
			return fmt.Errorf("%w: level %v out of range 0-%d", ErrInvalidAction, level, maxLevel)
		}
	case ActionSetSetpoint:
		if _, ok := numericParam(params, "setpoint"); !ok {
			return fmt.Errorf("%w: %q requires numeric parameter \"setpoint\"", ErrInvalidAction, action)
		}
	case ActionSetMode:
		mode, ok := params["mode"].(string)
		if !ok || mode == "" {
			return fmt.Errorf("%w: %q requires string parameter \"mode\"", ErrInvalidAction, action)
		}
	}

	for k, v := range params {
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: parameter %q exceeds %d characters", ErrInvalidAction, k, maxStringValueLen)
		}
	}

	return nil
}

// numericParam extracts a numeric parameter. JSON unmarshalling produces
// float64, but in-process callers may pass int.
func numericParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// validateStateMap bounds a state map's size.
func validateStateMap(s State) error {
	if len(s) > maxStateKeys {
		return fmt.Errorf("%w: state has too many keys (%d)", ErrInvalidDevice, len(s))
	}
	for k, v := range s {
		if str, ok := v.(string); ok && len(str) > maxStringValueLen {
			return fmt.Errorf("%w: state value %q exceeds %d characters", ErrInvalidDevice, k, maxStringValueLen)
		}
	}
	return nil
}

// GenerateSlug creates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	// Remove any characters that aren't alphanumeric or hyphens
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	// Remove leading/trailing hyphens and collapse multiple hyphens
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}

	return slug
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
