package freezer

import "fmt"

// ConfigurationError reports a freeze that cannot start because a required
// setting is missing or unusable. It is always returned before any
// rendering happens.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// BrokenLinkError aborts a freeze on the first render inconsistency: a
// non-200 response, a redirect leaving the site, or a content type that
// contradicts the destination file name. Partial output left on disk after
// this error is not a valid tree.
type BrokenLinkError struct {
	URL        string
	Referrer   string
	StatusCode int
	Reason     string
}

func (e *BrokenLinkError) Error() string {
	msg := fmt.Sprintf("broken link %s: %s", e.URL, e.Reason)
	if e.Referrer != "" {
		msg += fmt.Sprintf(" (linked from %s)", e.Referrer)
	}
	return msg
}

// PathCollisionError reports two URLs mapping onto the same destination
// file with different content.
type PathCollisionError struct {
	Path      string
	FirstURL  string
	SecondURL string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path collision on %s: %s and %s map to the same file with different content",
		e.Path, e.FirstURL, e.SecondURL)
}
