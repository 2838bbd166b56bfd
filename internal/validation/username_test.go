package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "valid", username: "alice2024"},
		{name: "minimum length", username: "abcde"},
		{name: "maximum length", username: "abcdefghijabcdefghijabcdefghij"},
		{name: "mixed case", username: "AliceSmith"},
		{name: "too short", username: "abcd", wantErr: ErrUsernameFormat},
		{name: "too long", username: "abcdefghijabcdefghijabcdefghijk", wantErr: ErrUsernameFormat},
		{name: "hyphen", username: "ab-cd123", wantErr: ErrUsernameFormat},
		{name: "underscore", username: "ab_cd123", wantErr: ErrUsernameFormat},
		{name: "space", username: "ab cd123", wantErr: ErrUsernameFormat},
		{name: "empty", username: "", wantErr: ErrUsernameFormat},
		{name: "reserved admin", username: "admin", wantErr: ErrUsernameReserved},
		{name: "reserved uppercase", username: "SUPPORT", wantErr: ErrUsernameReserved},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tc.username)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestUsernameReason(t *testing.T) {
	assert.Equal(t, ReasonInvalidFormat, UsernameReason(ValidateUsername("ab")))
	assert.Equal(t, ReasonReserved, UsernameReason(ValidateUsername("support")))
	assert.Equal(t, "", UsernameReason(nil))
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice2024", NormalizeUsername("  Alice2024 "))
}
