package background

import (
	"context"
	"sync"
	"time"

	"afyapay/internal/services"
	"afyapay/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// JobScheduler runs the periodic maintenance work: the overdue invoice
// sweep, the stale gateway-request poll, the nightly balance audit and the
// notification retry drain.
type JobScheduler struct {
	scheduler      gocron.Scheduler
	invoices       services.InvoiceService
	payments       services.PaymentService
	reconciliation services.ReconciliationService
	notify         services.NotificationService
	logger         *zap.Logger

	jobs map[string]gocron.Job
	mu   sync.RWMutex
}

func NewJobScheduler(
	invoices services.InvoiceService,
	payments services.PaymentService,
	reconciliation services.ReconciliationService,
	notify services.NotificationService,
) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:      scheduler,
		invoices:       invoices,
		payments:       payments,
		reconciliation: reconciliation,
		notify:         notify,
		logger:         utils.GetLogger(),
		jobs:           make(map[string]gocron.Job),
	}
	js.registerJobs()
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	// Overdue sweep hourly. Overdue invoices stay payable; the flip drives
	// reporting and reminders only.
	js.addJob("overdue-invoices", gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.markOverdueInvoices))

	// Requests stuck in pending are polled every 5 minutes. Only failures
	// finalize here; success settles through the callback.
	js.addJob("stale-gateway-requests", gocron.DurationJob(5*time.Minute),
		gocron.NewTask(js.pollStaleRequests))

	// Full balance audit nightly at 02:30.
	js.addJob("balance-audit", gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(2, 30, 0))),
		gocron.NewTask(js.auditBalances))

	// Failed notification deliveries retry every 10 minutes.
	js.addJob("notification-retry", gocron.DurationJob(10*time.Minute),
		gocron.NewTask(js.retryNotifications))

	js.logger.Info("registered background jobs", zap.Int("count", len(js.jobs)))
}

func (js *JobScheduler) addJob(name string, definition gocron.JobDefinition, task gocron.Task) {
	job, err := js.scheduler.NewJob(definition, task,
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		js.logger.Error("failed to register job", zap.String("job", name), zap.Error(err))
		return
	}

	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
}

// JobNames lists the registered jobs, for the metrics endpoint.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

func (js *JobScheduler) markOverdueInvoices() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := js.invoices.MarkOverdueInvoices(ctx); err != nil {
		js.logger.Error("overdue sweep failed", zap.Error(err))
	}
}

func (js *JobScheduler) pollStaleRequests() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := js.payments.PollPendingRequests(ctx, 10*time.Minute); err != nil {
		js.logger.Error("stale request poll failed", zap.Error(err))
	}
}

func (js *JobScheduler) auditBalances() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	reports, err := js.reconciliation.RecomputeAll(ctx)
	if err != nil {
		js.logger.Error("balance audit failed", zap.Error(err))
		return
	}

	corrected := 0
	for _, report := range reports {
		if report.Corrected {
			corrected++
		}
	}
	js.logger.Info("balance audit complete",
		zap.Int("providers", len(reports)), zap.Int("corrected", corrected))
}

func (js *JobScheduler) retryNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	delivered, err := js.notify.RetryFailed(ctx)
	if err != nil {
		js.logger.Error("notification retry failed", zap.Error(err))
		return
	}
	if delivered > 0 {
		js.logger.Info("redelivered notifications", zap.Int("count", delivered))
	}
}
