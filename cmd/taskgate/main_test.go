package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskgate/internal/approval"
)

func TestParseSweepKind(t *testing.T) {
	kind, err := parseSweepKind("auto_approve")
	require.NoError(t, err)
	assert.Equal(t, approval.SweepAutoApprove, kind)

	kind, err = parseSweepKind("escalation")
	require.NoError(t, err)
	assert.Equal(t, approval.SweepEscalation, kind)

	kind, err = parseSweepKind("all")
	require.NoError(t, err)
	assert.Equal(t, approval.SweepAll, kind)

	_, err = parseSweepKind("deadlines")
	assert.Error(t, err)
}
