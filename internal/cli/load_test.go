package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-retail-loader/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "\ufeffstore_id,address,city,state,zipcode,operating_hours,category_id,category_name,sku,product_name,brand,shelf_location," +
	"price_date,regular_price,promo_price,inventory_id,quantity_on_hand,reorder_threshold,primary_vendor_id,vendor_name,vendor_tier," +
	"promo_id,start_date,end_date,discount_amount,sale_id,sale_datetime,payment_type,quantity_sold,unit_price,promo_applied,promo_discount," +
	"reason_code,description,return_exists,return_id,return_date,quantity_returned\n" +
	"1,1 Main St,Springfield,IL,62701,8AM-8PM,10,Dairy,MILK,Whole Milk,Farm,A1,2024-01-01,$3.49,,1,50,10,7,Dairy Co,Gold," +
	",,,,1000,2024-01-05 10:15:00,Cash,2,3.49,False,,,,False,,,\n" +
	"1,1 Main St,Springfield,IL,62701,8AM-8PM,10,Dairy,MILK,Whole Milk,Farm,A1,2024-01-01,$3.49,,1,50,10,7,Dairy Co,Gold," +
	",,,,1001,2024-01-05 11:00:00,Cash,lots,3.49,False,,,,False,,,\n"

const deliveriesCSV = "delivery_id,vendor_id,store_id,delivery_date,status,sku,delivered_quantity\n" +
	"1,7,1,2024-01-04,Completed,MILK,20\n"

const expensesCSV = "store_id,expense_date,expense_category,amount\n" +
	"1,2024-01-31,Wages,1200.00\n"

const shiftsCSV = "department_id,department_name,employee_id,first_name,last_name,email,phone,role,store_id," +
	"schedule_id,shift_date,start_time,end_time\n" +
	"1,Front,42,Ann,Doe,ann@retail.test,555-0100,Store Manager,1,1,2024-01-05,08:00,16:00\n"

func writeExtracts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Sales_Master.csv":    salesCSV,
		"Delivery_Master.csv": deliveriesCSV,
		"Expense_Master.csv":  expensesCSV,
		"Shift_Master.csv":    shiftsCSV,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "retail.db"))
	t.Setenv("LOGGER_LEVEL", "error")
	t.Setenv("INVENTORY_LOCK_BACKEND", "memory")
	t.Setenv("KAFKA_TOPIC_RESTOCK", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) *report.LoadReport {
	t.Helper()
	rep := &report.LoadReport{}
	require.NoError(t, json.Unmarshal([]byte(out), rep))
	return rep
}

func inserted(rep *report.LoadReport) map[string]int {
	out := map[string]int{}
	for _, e := range rep.Entities {
		out[e.Entity] = e.Inserted
	}
	return out
}

func TestLoadCommand_JSON(t *testing.T) {
	sqliteEnv(t)
	dir := writeExtracts(t)

	out, err := execute(t, "load", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	rep := decodeReport(t, out)
	got := inserted(rep)
	assert.Equal(t, 1, got["Store"])
	assert.Equal(t, 1, got["Employee"])
	assert.Equal(t, 2, got["Sale"])
	assert.Equal(t, 1, got["SaleItem"])
	assert.Equal(t, 1, got["DeliveryItem"])
	assert.Equal(t, int64(1), rep.ManagersAssigned)
	assert.Equal(t, 1, rep.FailuresByKind()[report.MalformedRow])

	out, err = execute(t, "load", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	rerun := decodeReport(t, out)
	assert.Zero(t, rerun.TotalInserted(), "second load writes nothing new")
}

func TestLoadCommand_TextWithFailures(t *testing.T) {
	sqliteEnv(t)
	dir := writeExtracts(t)

	out, err := execute(t, "load", "--dir", dir, "--failures")
	require.NoError(t, err)

	assert.Contains(t, out, "SaleItem")
	assert.Contains(t, out, "sales:3 MalformedRow")
	assert.Contains(t, out, "stores with manager=1")
}

func TestLoadCommand_Strict(t *testing.T) {
	sqliteEnv(t)
	dir := writeExtracts(t)

	_, err := execute(t, "load", "--dir", dir, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, strings.Contains(err.Error(), "1 rows failed"))
}

func TestLoadCommand_MissingFilesLoadNothing(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "load", "--dir", t.TempDir(), "--format", "json")
	require.NoError(t, err)
	assert.Zero(t, decodeReport(t, out).TotalInserted())
}

func TestMigrateCommand(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema up to date\n", out)

	out, err = execute(t, "migrate", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, out)
}

func TestUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	t.Setenv("LOGGER_LEVEL", "error")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "oracle")
}
