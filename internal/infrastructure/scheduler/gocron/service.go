package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/ports"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

const tipTimeout = 10 * time.Second

type heightTask struct {
	target uint32
	fn     func()
}

type service struct {
	scheduler    *gocron.Scheduler
	ledger       swaptx.Ledger
	pollInterval time.Duration

	mu    *sync.Mutex
	job   *gocron.Job
	tasks map[string]*heightTask
}

func NewScheduler(ledger swaptx.Ledger, pollInterval time.Duration) ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	svc.SingletonModeAll()
	return &service{
		scheduler:    svc,
		ledger:       ledger,
		pollInterval: pollInterval,
		mu:           &sync.Mutex{},
		tasks:        make(map[string]*heightTask),
	}
}

func (s *service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return
	}

	job, err := s.scheduler.Every(s.pollInterval).Do(s.pollTip)
	if err != nil {
		log.WithError(err).Error("failed to schedule chain tip polling")
		return
	}
	s.job = job
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		s.scheduler.RemoveByReference(s.job)
		s.job = nil
	}
}

func (s *service) ScheduleRefundAtHeight(swapId string, target uint32, refund func()) error {
	if target <= 0 {
		return fmt.Errorf("invalid height: %d", target)
	}
	s.mu.Lock()
	s.tasks[swapId] = &heightTask{target: target, fn: refund}
	s.mu.Unlock()
	return nil
}

func (s *service) CancelRefund(swapId string) {
	s.mu.Lock()
	delete(s.tasks, swapId)
	s.mu.Unlock()
}

func (s *service) PendingRefunds() map[string]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]uint32, len(s.tasks))
	for id, tsk := range s.tasks {
		pending[id] = tsk.target
	}
	return pending
}

func (s *service) pollTip() {
	s.mu.Lock()
	empty := len(s.tasks) == 0
	s.mu.Unlock()
	if empty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tipTimeout)
	defer cancel()
	h, err := s.ledger.GetTipHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to get chain tip")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tsk := range s.tasks {
		if h >= tsk.target {
			log.Debugf("tip %d reached height %d of swap %s", h, tsk.target, id)
			// The task may schedule itself again, drop it first.
			delete(s.tasks, id)
			go tsk.fn()
		}
	}
}
