package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Unique id pattern: dotted identifiers as used by plugin ids
	idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateID validates a product, component, plugin or fragment id
func ValidateID(id string) error {
	if len(id) == 0 {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if len(id) > 256 {
		return &ValidationError{Field: "id", Message: "id must be at most 256 characters"}
	}
	if !idPattern.MatchString(id) {
		return &ValidationError{Field: "id", Message: "id must match pattern ^[A-Za-z0-9][A-Za-z0-9._-]*$"}
	}
	return nil
}

// ValidateSiteURL validates an update or discovery site URL (not reachability)
func ValidateSiteURL(urlStr string) error {
	if len(urlStr) == 0 {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	if len(urlStr) > 2048 {
		return &ValidationError{Field: "url", Message: "url must be at most 2048 characters"}
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("url must be valid RFC 3986 URI: %v", err)}
	}

	switch parsedURL.Scheme {
	case "http", "https", "file":
	default:
		return &ValidationError{Field: "url", Message: "url must start with http://, https:// or file://"}
	}

	return nil
}

// ValidateProduct validates a loaded product manifest
func ValidateProduct(p *Product) error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	for _, u := range append(append([]URLEntry{}, p.UpdateURLs...), p.DiscoveryURLs...) {
		if err := ValidateSiteURL(u.URL); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(p.Entries))
	for _, e := range p.Entries {
		if err := ValidateID(e.ID); err != nil {
			return &ValidationError{Field: "component", Message: err.Error()}
		}
		if seen[e.ID] {
			return &ValidationError{Field: "component", Message: fmt.Sprintf("component %q listed twice", e.ID)}
		}
		seen[e.ID] = true
	}
	return nil
}

// ValidateComponent validates a loaded component manifest
func ValidateComponent(c *Component) error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	for _, u := range append(append([]URLEntry{}, c.UpdateURLs...), c.DiscoveryURLs...) {
		if err := ValidateSiteURL(u.URL); err != nil {
			return err
		}
	}
	for _, p := range c.Plugins {
		if err := ValidateID(p.ID); err != nil {
			return &ValidationError{Field: "plugin", Message: err.Error()}
		}
	}
	for _, f := range c.Fragments {
		if err := ValidateID(f.ID); err != nil {
			return &ValidationError{Field: "fragment", Message: err.Error()}
		}
	}
	return nil
}

// NormalizeID trims surrounding whitespace from an id
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
