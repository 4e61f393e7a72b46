package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

type taggedRequest struct {
	Owner string `validate:"required,safe_string"`
	Name  string `validate:"required,entity_name"`
}

func TestValidator_SafeString(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		wantErr bool
	}{
		{"plain owner name", "alice", false},
		{"owner with dots and dashes", "alice.bob-co", false},
		{"script tag rejected", "<script>alert(1)</script>", true},
		{"sql injection marker rejected", "bob'; DROP TABLE owners;--", true},
		{"event handler attribute rejected", "onerror=alert(1)", true},
	}
	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(taggedRequest{Owner: tt.owner, Name: "valid-name"})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEntityName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple alphanumeric", "dataset1", true},
		{"dots underscores dashes", "my_data-set.v2", true},
		{"leading dot rejected", ".hidden", false},
		{"leading dash rejected", "-dataset", false},
		{"empty string rejected", "", false},
		{"path traversal rejected", "../etc/passwd", false},
		{"slash rejected", "a/b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEntityName(tt.in))
		})
	}
}

func TestValidator_EntityNameTag(t *testing.T) {
	v := NewValidator()
	err := v.Validate(taggedRequest{Owner: "alice", Name: "../escape"})
	require.Error(t, err)
	assert.Equal(t, "request", coreerrors.AsError(err).Reason)
}
