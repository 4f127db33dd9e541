package scheduler

import (
	"context"
	"sync"
	"time"

	"CityWatch/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 定时任务
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type FuncJob struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (f FuncJob) Name() string                  { return f.JobName }
func (f FuncJob) Run(ctx context.Context) error { return f.Fn(ctx) }

// zapLogger 适配 cron.Logger
type zapLogger struct{}

func (zapLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug(msg, zap.Any("kv", keysAndValues))
}

func (zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}

type Cron struct {
	c       *cron.Cron
	loc     *time.Location
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCron 创建调度器, timeout 为单个任务的执行上限
func NewCron(loc *time.Location, timeout time.Duration) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	l := zapLogger{}
	c := cron.New(cron.WithLocation(loc), cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{c: c, loc: loc, timeout: timeout, entries: map[string]cron.EntryID{}, ctx: ctx, cancel: cancel}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 停止调度并等待运行中的任务结束
func (cr *Cron) Stop() {
	cr.cancel()
	<-cr.c.Stop().Done()
}

// Add 注册任务, 同名任务会被替换
func (cr *Cron) Add(spec string, job Job) (cron.EntryID, error) {
	id, err := cr.c.AddFunc(spec, func() { cr.RunNow(job) })
	if err != nil {
		return 0, err
	}
	cr.mu.Lock()
	if old, ok := cr.entries[job.Name()]; ok {
		cr.c.Remove(old)
	}
	cr.entries[job.Name()] = id
	cr.mu.Unlock()
	logger.Info("cron job registered", zap.String("job", job.Name()), zap.String("spec", spec))
	return id, nil
}

// RunNow 立即执行一次任务
func (cr *Cron) RunNow(job Job) error {
	ctx, cancel := context.WithTimeout(cr.ctx, cr.timeout)
	defer cancel()
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		logger.Warn("cron job failed", zap.String("job", job.Name()), zap.Error(err))
		return err
	}
	logger.Debug("cron job done", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
	return nil
}

func (cr *Cron) Entries() map[string]cron.Entry {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	out := make(map[string]cron.Entry, len(cr.entries))
	for name, id := range cr.entries {
		out[name] = cr.c.Entry(id)
	}
	return out
}
