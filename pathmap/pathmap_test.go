package pathmap

import (
	"testing"

	"github.com/symcollect/dump-syms/internal/testhelper"
)

func TestMapFirstMatchWins(t *testing.T) {
	c, err := Compile(
		[]string{`^/build/`, `^/build/src/`},
		[]string{"git://repo/", "other/"},
	)
	testhelper.ExpectSuccess(t, err)

	got, ok := c.Map("/build/src/main.c")
	testhelper.Equate(t, ok, true)
	testhelper.Equate(t, got, "git://repo/src/main.c")
}

func TestMapReportsNoMatch(t *testing.T) {
	c, err := Compile([]string{`^/build/`}, []string{"git://repo/"})
	testhelper.ExpectSuccess(t, err)

	_, ok := c.Map("/other/main.c")
	testhelper.Equate(t, ok, false)
}

func TestCompileRejectsBadPattern(t *testing.T) {
	_, err := Compile([]string{"("}, []string{"x"})
	testhelper.ExpectFailure(t, err)
}

func TestCompileRejectsMismatchedLengths(t *testing.T) {
	_, err := Compile([]string{"a", "b"}, []string{"x"})
	testhelper.ExpectFailure(t, err)
}
