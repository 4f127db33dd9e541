package tasks

import (
	"context"
	"time"

	"CityWatch/internal/listeners"
	"CityWatch/internal/models"
	"CityWatch/pkg/backup"
	"CityWatch/pkg/config"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/scheduler"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner 定时维护任务
type Runner struct {
	db       *gorm.DB
	cfg      *config.Config
	notifier *listeners.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRunner(db *gorm.DB, cfg *config.Config, n *listeners.Notifier, m *metrics.Metrics) *Runner {
	return &Runner{db: db, cfg: cfg, notifier: n, metrics: m, now: time.Now}
}

// Register 把所有任务挂到调度器上
func (r *Runner) Register(cr *scheduler.Cron) error {
	type entry struct {
		spec string
		job  scheduler.Job
	}
	jobs := []entry{
		{"@every 1m", scheduler.FuncJob{JobName: "shift-reminders", Fn: r.RemindShifts}},
		{"@every 1m", scheduler.FuncJob{JobName: "business-gauges", Fn: r.RefreshGauges}},
		{"@every 1h", scheduler.FuncJob{JobName: "expire-pending-accounts", Fn: r.ExpirePendingAccounts}},
		{"30 2 * * *", scheduler.FuncJob{JobName: "purge-notifications", Fn: r.PurgeNotifications}},
	}
	if r.cfg.BackupEnabled {
		jobs = append(jobs, entry{r.cfg.BackupSchedule, scheduler.FuncJob{JobName: "backup", Fn: r.Backup}})
	}
	for _, j := range jobs {
		if _, err := cr.Add(j.spec, j.job); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) PurgeNotifications(ctx context.Context) error {
	before := r.now().AddDate(0, 0, -r.cfg.NotificationRetentionDays)
	n, err := models.PurgeNotifications(r.db.WithContext(ctx), before)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("purged notifications", zap.Int64("count", n))
	}
	return nil
}

func (r *Runner) ExpirePendingAccounts(ctx context.Context) error {
	before := r.now().AddDate(0, 0, -r.cfg.PendingAccountTTLDays)
	n, err := models.ExpirePendingAccounts(r.db.WithContext(ctx), before)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("expired pending accounts", zap.Int64("count", n))
	}
	return nil
}

// RemindShifts 提醒即将开始的排班, 每条只提醒一次
func (r *Runner) RemindShifts(ctx context.Context) error {
	now := r.now()
	db := r.db.WithContext(ctx)
	due, err := models.DueShiftReminders(db, now, time.Duration(r.cfg.ShiftReminderMinutes)*time.Minute)
	if err != nil {
		return err
	}
	for i := range due {
		s := &due[i]
		// 通知失败时不标记, 下一轮重试
		if _, err := r.notifier.NotifyUsers([]string{s.StaffID}, listeners.Notice{
			Title:      "Shift starting soon",
			Message:    listeners.ScheduleMessage(s),
			Kind:       "schedule.reminder",
			Resource:   models.ResStaffSchedules,
			ResourceID: s.ID,
		}); err != nil {
			logger.Warn("shift reminder failed", zap.Uint("schedule", s.ID), zap.String("staff", s.StaffID), zap.Error(err))
			continue
		}
		if err := models.MarkReminded(db, s.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// RefreshGauges 刷新业务指标
func (r *Runner) RefreshGauges(ctx context.Context) error {
	if r.metrics == nil {
		return nil
	}
	stats, err := models.GetDashboardStats(r.db.WithContext(ctx))
	if err != nil {
		return err
	}
	for status, n := range stats.CrimesByStatus {
		r.metrics.SetBusinessMetric("crimes", status, float64(n))
	}
	for status, n := range stats.AssetsByStatus {
		r.metrics.SetBusinessMetric("assets", status, float64(n))
	}
	r.metrics.SetBusinessMetric("incidents", "open", float64(stats.OpenIncidents))
	r.metrics.SetBusinessMetric("officers", "on_duty", float64(stats.OfficersOnDuty))
	r.metrics.SetBusinessMetric("pending_accounts", "pending", float64(stats.PendingAccounts))
	r.metrics.SetBusinessMetric("feedback", "new", float64(stats.NewFeedback))
	return nil
}

func (r *Runner) Backup(ctx context.Context) error {
	_, err := backup.Execute(ctx, backup.Options{
		Driver: r.cfg.DBDriver,
		DSN:    r.cfg.DSN,
		Dir:    r.cfg.BackupPath,
		Keep:   14,
		DB:     r.db,
	})
	return err
}
