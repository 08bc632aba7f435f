package testdata

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/require"
)

//go:embed *.txt
var data embed.FS

// Bulletin returns the named fixture.
func Bulletin(t testing.TB, name string) string {
	t.Helper()
	b, err := data.ReadFile(name)
	require.NoError(t, err)
	return string(b)
}

// Spring is a Taunton bulletin issued 1000 AM EDT SAT MAY 11 2013 with
// blocks for CTZ002 and MAZ005.
func Spring(t testing.TB) string {
	return Bulletin(t, "pfmbox.txt")
}

// Winter is a Taunton bulletin issued 400 AM EST MON DEC 30 2013 whose
// tables run into January 2014.
func Winter(t testing.TB) string {
	return Bulletin(t, "pfmbox_winter.txt")
}
