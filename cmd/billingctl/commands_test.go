package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	year, month, err := parsePeriod("", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.March, month)

	year, month, err = parsePeriod(" 2023-12 ", now)
	require.NoError(t, err)
	assert.Equal(t, 2023, year)
	assert.Equal(t, time.December, month)

	_, _, err = parsePeriod("2023-13", now)
	assert.ErrorContains(t, err, "expected YYYY-MM")
	_, _, err = parsePeriod("March", now)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	amt, err := parseAmount("2500.50")
	require.NoError(t, err)
	assert.Equal(t, "2500.5", amt.String())

	_, err = parseAmount("0")
	assert.ErrorContains(t, err, "must be positive")
	_, err = parseAmount("-10")
	assert.Error(t, err)
	_, err = parseAmount("ten")
	assert.ErrorContains(t, err, "invalid amount")
}

func TestParseID(t *testing.T) {
	_, err := parseID("payment", "not-a-uuid")
	assert.EqualError(t, err, `invalid payment ID "not-a-uuid"`)

	id, err := parseID("tenant", " 6f1c2a9e-3b7d-4c1e-9f20-5a8b7c6d5e4f ")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a9e-3b7d-4c1e-9f20-5a8b7c6d5e4f", id.String())
}

func TestParseOptionalDate(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)

	d, err := parseOptionalDate("", loc)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseOptionalDate("2024-03-05", loc)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, loc)))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(&cli{})

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"generate", "late-fee", "allocate", "reverse", "confirm", "reject", "recalc", "balance", "void"} {
		assert.Contains(t, names, want)
	}

	lateFee, _, err := root.Find([]string{"late-fee", "show"})
	require.NoError(t, err)
	assert.NotNil(t, lateFee.Flags().Lookup("due-date"))
}

func TestRootCommandRejectsBadArgsBeforeConnecting(t *testing.T) {
	c := &cli{}
	root := newRootCmd(c)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	// Argument validation runs before PersistentPreRunE, so no database is needed.
	root.SetArgs([]string{"allocate"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	assert.Nil(t, c.app)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, recalcView{Scope: "all", Changed: 3}))
	assert.JSONEq(t, `{"scope":"all","changed":3}`, buf.String())
}
