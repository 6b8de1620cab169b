package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "(555) 123-4567", want: "+15551234567"},
		{in: "555-123-4567", want: "+15551234567"},
		{in: "5551234567", want: "+15551234567"},
		{in: "15551234567", want: "+15551234567"},
		{in: "1 (555) 123-4567", want: "+15551234567"},
		{in: "+15551234567", want: "+15551234567"},
		{in: "555-123", wantErr: true},
		{in: "25551234567", wantErr: true},
		{in: "", wantErr: true},
		{in: "555123456789", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	once, err := NormalizePhone("(555) 123-4567")
	require.NoError(t, err)
	twice, err := NormalizePhone(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestFormatPhoneNationalKeepsDigits(t *testing.T) {
	out := FormatPhoneNational("+15551234567")
	assert.Equal(t, "5551234567", digitsOnly(out))

	assert.Equal(t, "not a phone", FormatPhoneNational("not a phone"))
}
