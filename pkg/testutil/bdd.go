package testutil

import "testing"

// Given, When, Then and And name subtests after the step they describe.
// Each returns the t.Run result so a scenario can stop when a step fails.

func Given(t *testing.T, desc string, step func(t *testing.T)) bool {
	t.Helper()
	return t.Run("given "+desc, step)
}

func When(t *testing.T, desc string, step func(t *testing.T)) bool {
	t.Helper()
	return t.Run("when "+desc, step)
}

func Then(t *testing.T, desc string, step func(t *testing.T)) bool {
	t.Helper()
	return t.Run("then "+desc, step)
}

func And(t *testing.T, desc string, step func(t *testing.T)) bool {
	t.Helper()
	return t.Run("and "+desc, step)
}
