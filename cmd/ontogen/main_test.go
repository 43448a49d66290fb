package main

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/PFKey/pkg/ontology"
)

const testdata = "../../pkg/ontology/obo/testdata"

func gzipCopy(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	f, err := os.Create(dst)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	gno := filepath.Join(dir, "GNOme.obo.gz")
	gzipCopy(t, filepath.Join(testdata, "gno.obo"), gno)
	out := filepath.Join(dir, "data")

	err := run(options{
		unimod: filepath.Join(testdata, "unimod.obo"),
		psimod: filepath.Join(testdata, "psimod.obo"),
		xlmod:  filepath.Join(testdata, "xlmod.obo"),
		gno:    gno,
		out:    out,
	})
	require.NoError(t, err)

	want := map[ontology.Ontology]int{
		ontology.Unimod: 5,
		ontology.PSIMOD: 3,
		ontology.RESID:  2,
		ontology.XLMOD:  3,
		ontology.GNO:    1,
	}
	var defs []*ontology.Definition
	for o, n := range want {
		f, err := os.Open(filepath.Join(out, ontology.TableFile(o)))
		require.NoError(t, err)
		loaded, err := ontology.Load(o, f)
		f.Close()
		require.NoError(t, err, "loading %s", o)
		require.Len(t, loaded, n, "%s entries", o)
		defs = append(defs, loaded...)
	}

	tables := ontology.NewTables(defs...)
	byName, err := tables.ByName(ontology.Unimod, "Label:13C(6)15N(2)")
	require.NoError(t, err)
	byID, err := tables.ByID(ontology.Unimod, "259")
	require.NoError(t, err)
	require.Same(t, byName, byID)

	resid, err := tables.ByID(ontology.RESID, "AA0037")
	require.NoError(t, err)
	require.Equal(t, "O-phospho-L-serine", resid.Name)

	glycan, err := tables.ByID(ontology.GNO, "G59626AS")
	require.NoError(t, err)
	require.Equal(t, "HexNAc2Hex5", glycan.Glycan.String())
}

func TestRunOnlyWritesGivenSources(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, run(options{xlmod: filepath.Join(testdata, "xlmod.obo"), out: out}))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ontology.TableFile(ontology.XLMOD), entries[0].Name())
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		opts options
	}{
		{name: "no sources", opts: options{out: t.TempDir()}},
		{name: "missing file", opts: options{unimod: filepath.Join(t.TempDir(), "absent.obo"), out: t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, run(tt.opts))
		})
	}
}
