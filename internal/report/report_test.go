package report

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReport_EntityOrderAndCounters(t *testing.T) {
	r := New()

	store := r.Entity("Store")
	store.AddInserted()
	store.AddInserted()
	store.AddExisting()
	store.AddDuplicate()

	emp := r.Entity("Employee")
	emp.Fail("shifts:4", ForeignKeyViolation, errors.New("store 9 missing"))
	emp.Fail("shifts:2", MalformedRow, errors.New("employee_id: not an integer"))

	require.Same(t, store, r.Entity("Store"))
	require.Len(t, r.Entities, 2)
	assert.Equal(t, "Store", r.Entities[0].Entity)
	assert.Equal(t, "Employee", r.Entities[1].Entity)

	assert.Equal(t, 2, r.TotalInserted())
	assert.Equal(t, 2, r.TotalFailed())
	assert.Equal(t, "shifts:4", emp.Failures[0].Row, "failures keep recording order")
	assert.Equal(t, map[Kind]int{ForeignKeyViolation: 1, MalformedRow: 1}, r.FailuresByKind())
	assert.Nil(t, r.Lookup("Sale"))
}

func TestEntityReport_ConcurrentUpdates(t *testing.T) {
	r := New()
	e := r.Entity("Inventory")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.AddInserted()
			e.Fail("sales:1", StorageError, errors.New("boom"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, e.Inserted)
	assert.Equal(t, 100, e.Failed())
}

func TestLoadReport_WriteText(t *testing.T) {
	r := New()
	r.Entity("SaleItem").Fail("sales:3", InventoryNotFound, errors.New("store 1 sku X"))
	r.Finish()

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, true))

	out := buf.String()
	assert.Contains(t, out, "SaleItem")
	assert.Contains(t, out, "sales:3 InventoryNotFound: store 1 sku X")
	assert.Contains(t, out, "failures[InventoryNotFound]=1")
}
