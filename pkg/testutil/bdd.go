package testutil

import "testing"

// Given/When/Then wrap t.Run with scenario-shaped names for tests that read
// as a narrative (multi-step flows like draft adoption). Plain subtests stay
// the default for everything else.

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
