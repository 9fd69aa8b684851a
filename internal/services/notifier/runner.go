package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/cealhq/club-calendar/internal/config/notifier"
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.Dispatch

	mSelected prometheus.Counter
	mSent     prometheus.Counter
	mErr      prometheus.Counter
	mTickDur  prometheus.Histogram
}

func NewRunner(log *zap.Logger, uc *Usecase, cfg *config.Dispatch) *Runner {
	return &Runner{
		Log: log,
		UC:  uc,
		Cfg: cfg,
		mSelected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_users_selected_total", Help: "Users due for a digest",
		}),
		mSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_digests_sent_total", Help: "Digest emails accepted by the transport",
		}),
		mErr: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_errors_total", Help: "Errors in the dispatch loop",
		}),
		mTickDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "notifier_tick_duration_seconds", Help: "Dispatch tick duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	selected, sent, errs, err := r.UC.Tick(ctx)
	if err != nil {
		r.mErr.Inc()
		r.Log.Warn("tick error", zap.Error(err))
	}
	if selected > 0 {
		r.mSelected.Add(float64(selected))
		r.mSent.Add(float64(sent))
		if errs > 0 {
			r.mErr.Add(float64(errs))
		}
		r.Log.Info(fmt.Sprintf("Sent %d notification(s)", sent),
			zap.Int("selected", selected), zap.Int("errors", errs))
	}
	r.mTickDur.Observe(time.Since(start).Seconds())
}

// Run fires the dispatcher on the configured cron spec (once per minute by
// default). SkipIfStillRunning serializes ticks: an overrunning tick makes
// the next one a no-op instead of racing it on the same watermarks.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.Log})),
	)
	if _, err := c.AddFunc(r.Cfg.CronSpec, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("register cron job %q: %w", r.Cfg.CronSpec, err)
	}
	c.Start()
	r.Log.Info("dispatch schedule registered", zap.String("spec", r.Cfg.CronSpec))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return ctx.Err()
}

type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug(msg, zap.Any("details", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, zap.Error(err), zap.Any("details", kv))
}
