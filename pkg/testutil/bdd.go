package testutil

import "testing"

// Given opens a scenario as a named subtest, e.g. "Given the gateway router"
// or "Given a slow review probe". Nest When and Then inside it.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

// When names the request or probe run under a Given.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

// Then holds the assertions on the outcome of a When.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
