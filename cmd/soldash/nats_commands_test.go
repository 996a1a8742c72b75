package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileJQFilters_Invalid(t *testing.T) {
	_, err := compileJQFilters([]string{".kind =="})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestMatchesJQFilters(t *testing.T) {
	event := []byte(`{
		"kind": "status_changed",
		"signature": "sig1",
		"wallet_address": "wallet1",
		"type": "swap",
		"status": "confirmed",
		"value": 1.5
	}`)

	tests := []struct {
		name    string
		filters []string
		want    bool
	}{
		{
			name:    "no filters matches everything",
			filters: nil,
			want:    true,
		},
		{
			name:    "kind equality",
			filters: []string{`.kind == "status_changed"`},
			want:    true,
		},
		{
			name:    "kind mismatch",
			filters: []string{`.kind == "created"`},
			want:    false,
		},
		{
			name:    "all filters must match",
			filters: []string{`.type == "swap"`, `.status == "confirmed"`},
			want:    true,
		},
		{
			name:    "one failing filter fails the set",
			filters: []string{`.type == "swap"`, `.status == "pending"`},
			want:    false,
		},
		{
			name:    "numeric comparison",
			filters: []string{`.value > 1`},
			want:    true,
		},
		{
			name:    "missing field is null and falsy",
			filters: []string{`.no_such_field`},
			want:    false,
		},
		{
			name:    "non-boolean truthy result",
			filters: []string{`.signature`},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := compileJQFilters(tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, matchesJQFilters(event, compiled))
		})
	}
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0.0)) // jq considers 0 truthy
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy(map[string]interface{}{}))
}
