package services

import "math"

// CommissionPolicy selects the revenue-split rule. Callers must pass the
// policy explicitly; the calculator never infers it from invoice shape.
type CommissionPolicy int

const (
	// PolicyFlat takes the platform cut from the whole amount: commission is
	// 40% of the total, the provider receives the remaining 60%. Used for
	// pharmacy, subscription and manual invoices, and whenever the
	// fee/transport breakdown is unknown.
	PolicyFlat CommissionPolicy = iota

	// PolicyAppointment takes the platform cut from the consultation fee
	// only: commission is 40% of the fee, the provider receives 60% of the
	// fee plus the full transport surcharge.
	PolicyAppointment
)

// platformRate is the platform's share of the commissionable amount.
const platformRate = 0.40

// Split computes the (commission, providerShare) pair for a consultation fee
// and transport surcharge under the given policy. Pure function, no side
// effects. Under PolicyFlat the two arguments are simply summed into a total.
func Split(policy CommissionPolicy, fee, transport float64) (commission, providerShare float64) {
	switch policy {
	case PolicyAppointment:
		commission = roundMoney(fee * platformRate)
		providerShare = roundMoney(fee-fee*platformRate) + transport
	default:
		total := fee + transport
		commission = roundMoney(total * platformRate)
		providerShare = roundMoney(total - total*platformRate)
	}
	return commission, providerShare
}

// SplitTotal applies PolicyFlat to a bare total amount.
func SplitTotal(total float64) (commission, providerShare float64) {
	return Split(PolicyFlat, total, 0)
}

// roundMoney rounds to two decimal places, the smallest unit the gateway
// settles in.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
