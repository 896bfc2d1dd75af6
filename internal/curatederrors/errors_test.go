package curatederrors_test

import (
	"testing"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

func TestNormalisation(t *testing.T) {
	inner := curatederrors.Errorf("boom")
	outer := curatederrors.Errorf("boom: %v", inner)

	if outer.Error() != "boom" {
		t.Fatalf("expected de-duplicated chain, got %q", outer.Error())
	}
}

func TestIsAndHas(t *testing.T) {
	inner := curatederrors.Errorf(curatederrors.ParseError, "bad magic")
	outer := curatederrors.Errorf("collect failed: %v", inner)

	if !curatederrors.Is(inner, curatederrors.ParseError) {
		t.Fatal("expected Is to match the direct pattern")
	}
	if curatederrors.Is(outer, curatederrors.ParseError) {
		t.Fatal("Is should not match through a wrapper")
	}
	if !curatederrors.Has(outer, curatederrors.ParseError) {
		t.Fatal("Has should find the pattern in the chain")
	}
}

func TestIsAny(t *testing.T) {
	if curatederrors.IsAny(nil) {
		t.Fatal("nil is not a curated error")
	}
	if !curatederrors.IsAny(curatederrors.Errorf("x")) {
		t.Fatal("expected curated error to be recognised")
	}
}
