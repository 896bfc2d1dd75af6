// Package testhelper collects the small assertion helpers used by this
// repository's table-style tests, so test files read as a sequence of
// expectations rather than hand-rolled if/t.Fatal blocks.
package testhelper

import (
	"reflect"
	"testing"
)

// Equate fails the test unless got and want are deeply equal.
func Equate(t *testing.T, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

// Inequate fails the test if got and want are deeply equal.
func Inequate(t *testing.T, got, want interface{}) {
	t.Helper()
	if reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, expected it to differ from %#v", got, want)
	}
}

// ExpectSuccess fails the test if v represents failure: a non-nil error, or
// a boolean false.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	switch x := v.(type) {
	case nil:
		return
	case error:
		t.Errorf("unexpected error: %v", x)
	case bool:
		if !x {
			t.Errorf("expected success, got false")
		}
	}
}

// ExpectFailure fails the test if v does not represent failure.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	switch x := v.(type) {
	case nil:
		t.Errorf("expected failure, got nil")
	case error:
		return
	case bool:
		if x {
			t.Errorf("expected failure, got true")
		}
	}
}
