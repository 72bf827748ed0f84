package serp

import "fmt"

// ProviderError is returned when a single page fetch fails after the
// provider's retry budget is spent. Err holds the last underlying cause.
type ProviderError struct {
	Provider string
	Query    string
	Page     int // 0-based page index of the failed call
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: query %q page %d failed after %d attempt(s): %v",
		e.Provider, e.Query, e.Page, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigError reports an invalid or missing setting. It is raised before any
// provider call is made.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}
