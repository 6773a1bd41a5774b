package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/ingest"
)

func TestWriteOut(t *testing.T) {
	sum := ingest.Summary{Scanned: 1, Accepted: 1, Outcomes: []ingest.Outcome{
		{Source: "a.pdf", Status: ingest.OutcomeAccepted, WorkItems: 4},
	}}

	var y bytes.Buffer
	require.NoError(t, writeOut(&y, formatYAML, sum))
	assert.Contains(t, y.String(), "scanned: 1")
	assert.Contains(t, y.String(), "source: a.pdf")

	var j bytes.Buffer
	require.NoError(t, writeOut(&j, formatJSON, sum))
	assert.Contains(t, j.String(), `"work_items": 4`)

	assert.Error(t, writeOut(&j, "xml", sum))
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("from", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDay("from", "2024-03-12")
	require.NoError(t, err)
	assert.Equal(t, 12, d.Day())

	_, err = parseDay("to", "12.3.24")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 2, exitCode(err))
}
