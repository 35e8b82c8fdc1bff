package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAppointmentPolicy(t *testing.T) {
	tests := []struct {
		name           string
		fee            float64
		transport      float64
		wantCommission float64
		wantProvider   float64
	}{
		{
			name:           "fee with transport surcharge",
			fee:            1000,
			transport:      150,
			wantCommission: 400,
			wantProvider:   750,
		},
		{
			name:           "fee only",
			fee:            2500,
			transport:      0,
			wantCommission: 1000,
			wantProvider:   1500,
		},
		{
			name:           "transport is never commissioned",
			fee:            100,
			transport:      1000,
			wantCommission: 40,
			wantProvider:   1060,
		},
		{
			name:           "fractional fee rounds to cents",
			fee:            333.33,
			transport:      0,
			wantCommission: 133.33,
			wantProvider:   200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, provider := Split(PolicyAppointment, tt.fee, tt.transport)
			assert.Equal(t, tt.wantCommission, commission)
			assert.Equal(t, tt.wantProvider, provider)
		})
	}
}

func TestSplitFlatPolicy(t *testing.T) {
	commission, provider := Split(PolicyFlat, 1000, 150)
	assert.Equal(t, 460.0, commission)
	assert.Equal(t, 690.0, provider)

	commission, provider = SplitTotal(2000)
	assert.Equal(t, 800.0, commission)
	assert.Equal(t, 1200.0, provider)
}

func TestSplitPartsSumToTotal(t *testing.T) {
	for _, total := range []float64{1, 99.99, 1500, 123456.78} {
		commission, provider := SplitTotal(total)
		assert.InDelta(t, total, commission+provider, 0.011, "total %v", total)
	}
}
