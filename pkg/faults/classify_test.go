package faults_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/faults"
)

func TestClassifyPassesTypedErrorsThrough(t *testing.T) {
	t.Parallel()

	typed := faults.NewIntegration("rate limited", "billing", "charge")

	classified := faults.Classify(typed, map[string]any{"execution_id": "exec-1"})

	assert.Equal(t, faults.CategoryIntegration, classified.Category)
	assert.Equal(t, "INTEGRATION_ERROR", classified.Code)
	assert.Equal(t, "exec-1", classified.Context["execution_id"])
	assert.Equal(t, "billing", classified.Context["service"])
}

func TestClassifyUnwrapsNestedTypedErrors(t *testing.T) {
	t.Parallel()

	typed := faults.NewNetwork("timeout")
	wrapped := fmt.Errorf("step fetch: %w", typed)

	classified := faults.Classify(wrapped, nil)

	assert.Equal(t, faults.CategoryNetwork, classified.Category)
}

func TestClassifyHeuristics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		message  string
		category faults.Category
	}{
		{"invalid field value", faults.CategoryValidation},
		{"authentication token expired", faults.CategoryAuthentication},
		{"permission denied", faults.CategoryAuthentication},
		{"connection refused", faults.CategoryIntegration},
		{"network unreachable", faults.CategoryIntegration},
		{"database is locked", faults.CategoryDatabase},
		{"sql: no rows in result set", faults.CategoryDatabase},
		{"something exploded", faults.CategorySystem},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			t.Parallel()

			classified := faults.Classify(errors.New(tc.message), nil)
			assert.Equal(t, tc.category, classified.Category)
			assert.Equal(t, tc.message, classified.Message)
		})
	}
}

func TestClassifyKeepsCauseAndContext(t *testing.T) {
	t.Parallel()

	cause := errors.New("something exploded")
	classified := faults.Classify(cause, map[string]any{"step_id": "s1"})

	require.ErrorIs(t, classified, cause)
	assert.Equal(t, "s1", classified.Context["step_id"])
}
