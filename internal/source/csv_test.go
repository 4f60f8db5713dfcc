package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	in := "\ufeffstore_id, sku ,promo_id\n1,MILK-1,nan\n2,BREAD-2,7\n"

	tbl, err := ReadCSV(Sales, strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	first := tbl.Records[0]
	assert.Equal(t, "sales:2", first.ID())
	v, ok := first.Get("sku")
	assert.True(t, ok)
	assert.Equal(t, "MILK-1", v)

	_, ok = first.Get("promo_id")
	assert.False(t, ok, "nan is a blank marker")
	assert.False(t, first.Has("store_id", "promo_id"))
	assert.True(t, tbl.Records[1].Has("store_id", "promo_id"))
}

func TestReadCSV_ShortRowsKeepKnownColumns(t *testing.T) {
	tbl, err := ReadCSV(Shifts, strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)

	rec := tbl.Records[0]
	assert.True(t, rec.Has("a", "b"))
	assert.False(t, rec.Has("c"))
}

func TestReadCSV_Empty(t *testing.T) {
	tbl, err := ReadCSV(Expenses, strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, tbl.Len())
}

func TestReadDir_SkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFiles.Expenses),
		[]byte("store_id,expense_date,expense_category,amount\n1,2024-01-02,Wages,10.50\n"), 0o600))

	src, err := ReadDir(dir, DefaultFiles)
	require.NoError(t, err)

	assert.Nil(t, src.Sales)
	assert.Nil(t, src.Deliveries)
	require.NotNil(t, src.Expenses)
	assert.Equal(t, 1, src.Expenses.Len())
	assert.Equal(t, "expenses:2", src.Expenses.Records[0].ID())
}
