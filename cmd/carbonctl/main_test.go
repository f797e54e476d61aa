package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/export"
)

const ghanaFixture = "../../testdata/ghana/engine_inputs.json"

// imbalancedYAML opens with 1000 of cash against 300000 of equity.
const imbalancedYAML = `start_year: 2025
years: 3
credits_generated: [1000, 2000, 3000]
price_per_credit: [10, 10, 10]
staff_costs: [5000, 5000, 5000]
initial_equity_t0: 300000
opening_cash_y1: 1000
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompute_Summary(t *testing.T) {
	// WHEN: Computing the Ghana fixture
	out, err := execute(t, "compute", ghanaFixture)

	// THEN: Every year and the returns are printed
	require.NoError(t, err)
	for _, year := range []string{"2025", "2030", "2034"} {
		assert.Contains(t, out, year)
	}
	assert.Contains(t, out, "NPV @ 10%")
	assert.Contains(t, out, "IRR:")
	assert.Contains(t, out, "Payback:")
	assert.NotContains(t, out, "Violations")
}

func TestCompute_MissingFile(t *testing.T) {
	_, err := execute(t, "compute", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestCompute_StrictFlag(t *testing.T) {
	path := writeFile(t, "bad.yaml", imbalancedYAML)

	t.Run("warn prints violations", func(t *testing.T) {
		out, err := execute(t, "compute", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Violations:")
	})

	t.Run("strict fails", func(t *testing.T) {
		_, err := execute(t, "--strict", "compute", path)
		assert.Error(t, err)
	})
}

func TestExport_CSV(t *testing.T) {
	// WHEN: Exporting the debt schedule to stdout
	out, err := execute(t, "export", ghanaFixture, "--statement", "debt")
	require.NoError(t, err)

	// THEN: A header plus one row per year
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 11)
	headers, err := export.Headers(export.StatementDebt)
	require.NoError(t, err)
	assert.Equal(t, headers, records[0])
}

func TestExport_ToFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "income.csv")

	_, err := execute(t, "export", ghanaFixture, "-s", "income", "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	headers, err := export.Headers(export.StatementIncome)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(headers, ",")))
}

func TestExport_UnknownStatement(t *testing.T) {
	_, err := execute(t, "export", ghanaFixture, "--statement", "ledger")
	assert.ErrorIs(t, err, export.ErrUnknownStatement)
}

func TestSweep_Table(t *testing.T) {
	out, err := execute(t, "sweep", ghanaFixture, "--limit", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "variation")
	assert.Contains(t, out, "price x0.8")
	assert.Contains(t, out, "credits x1.2")
}

func TestCheck(t *testing.T) {
	bad := writeFile(t, "bad.yaml", imbalancedYAML)

	t.Run("balanced fixture passes", func(t *testing.T) {
		out, err := execute(t, "check", ghanaFixture)
		require.NoError(t, err)
		assert.Contains(t, out, "ok    "+ghanaFixture)
	})

	t.Run("any failure fails the command", func(t *testing.T) {
		out, err := execute(t, "check", ghanaFixture, bad)
		require.ErrorIs(t, err, errCheckFailed)
		assert.Contains(t, out, "ok    "+ghanaFixture)
		assert.Contains(t, out, "FAIL  "+bad)
		assert.Contains(t, out, "balance_sheet failed in 2025")
	})

	t.Run("requires a fixture", func(t *testing.T) {
		_, err := execute(t, "check")
		assert.Error(t, err)
	})
}
