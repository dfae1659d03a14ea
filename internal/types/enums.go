package types

// BillingStatus is the coarse payment state that drives site authorization.
type BillingStatus string

const (
	BillingUnpaid  BillingStatus = "unpaid"
	BillingPaid    BillingStatus = "paid"
	BillingOverdue BillingStatus = "overdue"
)

// Valid reports whether the value is one of the modeled billing states.
// Values outside this set indicate corrupt stored data, not caller error.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingUnpaid, BillingPaid, BillingOverdue:
		return true
	}
	return false
}

// BillingCycle is the recurrence unit for subscription renewals.
type BillingCycle string

const (
	CycleDaily   BillingCycle = "daily"
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether the value is one of the modeled cycle units.
func (c BillingCycle) Valid() bool {
	switch c {
	case CycleDaily, CycleWeekly, CycleMonthly, CycleYearly:
		return true
	}
	return false
}

// TransactionType distinguishes real payments from manual corrections.
type TransactionType string

const (
	TxnPayment    TransactionType = "payment"
	TxnAdjustment TransactionType = "adjustment"
)

// Valid reports whether the value is one of the modeled transaction types.
func (t TransactionType) Valid() bool {
	return t == TxnPayment || t == TxnAdjustment
}
