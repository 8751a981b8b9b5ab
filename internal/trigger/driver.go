package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Herald/internal/lease"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/scheduler"
	"github.com/shaiso/Herald/internal/telemetry"
)

// DefaultSpec — расписание trigger'а по умолчанию.
const DefaultSpec = "@every 1m"

// Источники запуска.
const (
	SourceCron = "cron"
	SourceAPI  = "api"
	SourceMQ   = "amqp"
)

// ErrNotStarted — Stop вызван до Start.
var ErrNotStarted = errors.New("trigger driver not started")

// specParser — 5 полей cron и дескрипторы (@hourly, @every 1m).
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Runner выполняет один проход. Реализация: scheduler.Service.
type Runner interface {
	TriggerSchedule(ctx context.Context) ([]scheduler.TriggerResult, error)
}

// Config — конфигурация Driver.
type Config struct {
	Runner Runner
	Locker lease.Locker // default: lease.Local
	Logger *slog.Logger
	Spec   string // default: DefaultSpec
}

// Driver вызывает trigger по расписанию и по запросу.
//
// Проходы внутри процесса сериализуются. По расписанию проход запускает
// только держатель lease; ручной запуск (API, AMQP) lease не требует.
type Driver struct {
	runner Runner
	locker lease.Locker
	logger *slog.Logger
	spec   string

	mu sync.Mutex // сериализует проходы

	stateMu sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	leader  bool
}

// ValidateSpec проверяет cron-выражение trigger'а.
func ValidateSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid trigger spec %q: %w", spec, err)
	}
	return nil
}

// New создаёт Driver.
func New(cfg Config) (*Driver, error) {
	if cfg.Runner == nil {
		return nil, errors.New("trigger: runner is required")
	}
	d := &Driver{
		runner: cfg.Runner,
		locker: cfg.Locker,
		logger: cfg.Logger,
		spec:   cfg.Spec,
	}
	if d.locker == nil {
		d.locker = lease.Local{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.spec == "" {
		d.spec = DefaultSpec
	}
	if err := ValidateSpec(d.spec); err != nil {
		return nil, err
	}
	return d, nil
}

// RunOnce выполняет один проход и ждёт завершения предыдущего.
func (d *Driver) RunOnce(ctx context.Context, source string) ([]scheduler.TriggerResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.logger.With("source", source)
	start := time.Now()

	results, err := d.runner.TriggerSchedule(ctx)
	if err != nil {
		telemetry.TriggerRuns.WithLabelValues(source, "error").Inc()
		log.Error("trigger pass failed", "error", err)
		return nil, err
	}

	telemetry.TriggerRuns.WithLabelValues(source, "ok").Inc()
	log.Debug("trigger pass finished", "processed", len(results), "duration", time.Since(start))
	return results, nil
}

// Start запускает cron. Проходы используют ctx; отмена ctx прерывает
// выборку следующих schedules.
func (d *Driver) Start(ctx context.Context) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.cron != nil {
		return errors.New("trigger driver already started")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(specParser),
		cron.WithLogger(cronLogger{d.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{d.logger})),
	)
	if _, err := c.AddFunc(d.spec, d.tick); err != nil {
		d.cancel()
		return fmt.Errorf("schedule trigger: %w", err)
	}
	c.Start()
	d.cron = c

	d.logger.Info("trigger driver started", "spec", d.spec)
	return nil
}

// Stop останавливает cron, ждёт текущий проход (не дольше ctx)
// и освобождает lease.
func (d *Driver) Stop(ctx context.Context) error {
	d.stateMu.Lock()
	c := d.cron
	d.cron = nil
	d.stateMu.Unlock()

	if c == nil {
		return ErrNotStarted
	}

	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		d.logger.Warn("trigger pass still running at shutdown")
	}
	d.cancel()

	d.stateMu.Lock()
	wasLeader := d.leader
	d.leader = false
	d.stateMu.Unlock()

	telemetry.LeaseHeld.Set(0)
	if !wasLeader {
		return nil
	}
	if err := d.locker.Unlock(ctx); err != nil && !errors.Is(err, lease.ErrNotHeld) {
		return fmt.Errorf("release lease: %w", err)
	}
	d.logger.Info("trigger lease released")
	return nil
}

// tick — запуск по расписанию.
func (d *Driver) tick() {
	ctx := d.ctx
	if ctx.Err() != nil {
		return
	}

	ok, err := d.locker.TryLock(ctx)
	if err != nil {
		d.logger.Warn("lease check failed", "error", err)
	}
	d.setLeader(ok)
	if !ok {
		telemetry.TriggerRuns.WithLabelValues(SourceCron, "skipped").Inc()
		d.logger.Debug("not a leader, skipping trigger")
		return
	}

	_, _ = d.RunOnce(ctx, SourceCron)
}

func (d *Driver) setLeader(ok bool) {
	d.stateMu.Lock()
	changed := d.leader != ok
	d.leader = ok
	d.stateMu.Unlock()

	if ok {
		telemetry.LeaseHeld.Set(1)
	} else {
		telemetry.LeaseHeld.Set(0)
	}
	if changed {
		d.logger.Info("trigger leadership changed", "leader", ok)
	}
}

// IsLeader сообщает, держит ли процесс lease.
func (d *Driver) IsLeader() bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.leader
}

// Handler возвращает обработчик сообщений schedule.trigger.
func (d *Driver) Handler() mq.Handler {
	return func(ctx context.Context, msg *mq.Message) error {
		if msg.Type != mq.MessageTypeTrigger {
			d.logger.Warn("unexpected message type", "type", msg.Type, "message_id", msg.ID)
			return nil
		}
		payload, err := mq.ParsePayload[mq.TriggerPayload](msg)
		if err != nil {
			return fmt.Errorf("parse trigger payload: %w", err)
		}
		d.logger.Info("trigger requested", "message_id", msg.ID, "requested_by", payload.Source)
		_, err = d.RunOnce(ctx, SourceMQ)
		return err
	}
}

// cronLogger передаёт сообщения cron в slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
