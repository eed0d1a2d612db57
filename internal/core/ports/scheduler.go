package ports

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleRefundAtHeight runs refund once the chain tip reaches target.
	// Scheduling the same swap again replaces the pending task.
	ScheduleRefundAtHeight(swapId string, target uint32, refund func()) error
	CancelRefund(swapId string)
	// PendingRefunds returns the target height of every scheduled refund by
	// swap id.
	PendingRefunds() map[string]uint32
}
