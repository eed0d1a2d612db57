package boltz

type SwapUpdateEvent int

const (
	UnknownEvent SwapUpdateEvent = iota

	SwapCreated
	SwapExpired

	InvoiceSet
	InvoicePaid
	InvoicePending
	InvoiceSettled
	InvoiceFailedToPay

	TransactionFailed
	TransactionMempool
	TransactionClaimed
	TransactionRefunded
	TransactionConfirmed
	TransactionLockupFailed
	TransactionClaimPending
)

var swapUpdateEventStrings = map[string]SwapUpdateEvent{
	"swap.created": SwapCreated,
	"swap.expired": SwapExpired,

	"invoice.set":         InvoiceSet,
	"invoice.paid":        InvoicePaid,
	"invoice.pending":     InvoicePending,
	"invoice.settled":     InvoiceSettled,
	"invoice.failedToPay": InvoiceFailedToPay,

	"transaction.failed":        TransactionFailed,
	"transaction.mempool":       TransactionMempool,
	"transaction.claimed":       TransactionClaimed,
	"transaction.refunded":      TransactionRefunded,
	"transaction.confirmed":     TransactionConfirmed,
	"transaction.lockupFailed":  TransactionLockupFailed,
	"transaction.claim.pending": TransactionClaimPending,
}

func ParseEvent(event string) SwapUpdateEvent {
	return swapUpdateEventStrings[event]
}

// IsLockup reports whether the event carries the swap lockup transaction.
func (e SwapUpdateEvent) IsLockup() bool {
	return e == TransactionMempool || e == TransactionConfirmed
}

// IsFailure reports whether the swap can no longer be claimed.
func (e SwapUpdateEvent) IsFailure() bool {
	switch e {
	case SwapExpired, InvoiceFailedToPay, TransactionFailed,
		TransactionLockupFailed, TransactionRefunded:
		return true
	default:
		return false
	}
}
