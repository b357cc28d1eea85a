package main

import (
	"bytes"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"apbn/internal/core"
	"apbn/internal/view"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("APBN_SOURCES", "")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "db", "apbn.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummary_Demo(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "summary", "--demo", "--demo-rows", "6", "--year", "2014")
	require.NoError(t, err)

	assert.Contains(t, out, view.Title)
	assert.Contains(t, out, view.MetricRevenue)
	assert.Contains(t, out, view.MetricBudget)
	assert.Contains(t, out, "Filter: Tahun=2014")
	assert.Contains(t, out, "Data setelah filter: 6 baris")
	for _, year := range []string{"2012", "2013", "2014", "2015", "2016"} {
		assert.Contains(t, out, year)
	}
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "30")
}

func TestSummary_UnknownYear(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "summary", "--demo", "--demo-rows", "2", "--year", "1999")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownYear)
}

func TestSummary_NoFilesFails(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "summary")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.Contains(t, out, view.NoDataMessage)
	assert.Contains(t, out, "0 file dimuat, 5 gagal")
}

func TestExport_Demo(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "merged.xlsx")

	out, err := execute(t, "export", "--demo", "--demo-rows", "4", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "20 baris ditulis")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 21)
	assert.Contains(t, rows[0], core.RevenueColumn)
	assert.Contains(t, rows[0], core.ExpenditureColumn)
}

func TestExport_FilteredByYear(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "2013.xlsx")

	_, err := execute(t, "export", "--demo", "--demo-rows", "3", "--year", "2013", "--out", path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestExport_NoFilesFails(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "export", "--out", filepath.Join(dir, "out.xlsx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.NoFileExists(t, filepath.Join(dir, "out.xlsx"))
}

func TestServe_ListenFailureReleasesResources(t *testing.T) {
	setupEnv(t)
	t.Setenv("LOG_LEVEL", "info")

	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	t.Setenv("PORT", strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))

	out, err := execute(t, "serve", "--demo", "--demo-rows", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	assert.Contains(t, out, "Load log closed")
}
