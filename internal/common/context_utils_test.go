package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local 07 prefix", "0712345678", "254712345678", false},
		{"local 01 prefix", "0112345678", "254112345678", false},
		{"already canonical", "254712345678", "254712345678", false},
		{"plus prefix", "+254712345678", "254712345678", false},
		{"bare subscriber number", "712345678", "254712345678", false},
		{"spaces and dashes", "0712 345-678", "254712345678", false},
		{"too short", "07123", "", true},
		{"landline prefix", "0204567890", "", true},
		{"foreign msisdn", "255712345678", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhoneNumber(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateUUID(t *testing.T) {
	_, err := ValidateUUID("not-a-uuid", "id")
	assert.Error(t, err)

	_, err = ValidateUUID("  ", "id")
	assert.Error(t, err)

	id, err := ValidateUUID("1b4e28ba-2fa1-11d2-883f-0016d3cca427", "id")
	assert.NoError(t, err)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", id.String())
}

func TestValidateInvoiceOrigin(t *testing.T) {
	for _, origin := range []string{"appointment", "subscription", "pharmacy", "manual"} {
		assert.NoError(t, ValidateInvoiceOrigin(origin))
	}
	assert.Error(t, ValidateInvoiceOrigin("walk-in"))
}

func TestValidatePaymentMethod(t *testing.T) {
	assert.NoError(t, ValidatePaymentMethod("cash"))
	assert.NoError(t, ValidatePaymentMethod("card"))
	assert.Error(t, ValidatePaymentMethod("mpesa"))
}
