package scheduler

import (
	"context"
	"log/slog"
	"math"
	"time"

	"taskkeeper/internal/model"
	"taskkeeper/internal/pkg/metrics"
	"taskkeeper/internal/pkg/notify"

	"gorm.io/gorm"
)

// Scheduler 负责每日的到期提醒扫描。
//
// 扫描窗口是 [明天 00:00:00, 后天 23:59:59]（UTC）：窗口 48 小时、
// 节奏 24 小时，单次漏跑不会丢提醒，代价是同一任务在到期前
// 最多收到两封提醒邮件。这是有意的设计，不做已发送去重。
//
// 扫描与请求处理相互独立，读取后直接发送、不加锁：
// 扫描到发送之间被完成或归档的任务仍可能收到提醒（接受的竞态）。
type Scheduler struct {
	db            *gorm.DB
	logger        *slog.Logger
	notifier      notify.Notifier
	hourUTC       int           // 每日触发的小时（UTC）
	sweepOnStart  bool          // 启动时是否立即扫描一次
	notifyTimeout time.Duration // 单次发送超时

	now func() time.Time // 可注入的时钟，测试用
}

// NewScheduler 创建提醒调度器。
//
// 参数:
//
//	db: 数据库连接
//	logger: 日志记录器
//	notifier: 邮件通知器
//	hourUTC: 每日触发小时（UTC，0-23）
//	sweepOnStart: 启动时是否立即扫描
//	notifyTimeout: 单次通知发送超时（<=0 时使用 5s）
func NewScheduler(db *gorm.DB, logger *slog.Logger, notifier notify.Notifier, hourUTC int, sweepOnStart bool, notifyTimeout time.Duration) *Scheduler {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 8
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Scheduler{
		db:            db,
		logger:        logger,
		notifier:      notifier,
		hourUTC:       hourUTC,
		sweepOnStart:  sweepOnStart,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

// Run 阻塞运行每日调度循环，直到 ctx 取消。
//
// 每天在配置的整点（UTC）触发一次扫描；定时器按下一次触发时刻
// 重新计算，进程挂起或时钟调整后也能回到正确的节奏。
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("reminder scheduler started",
		slog.Int("hour_utc", s.hourUTC),
		slog.Bool("sweep_on_start", s.sweepOnStart))

	if s.sweepOnStart {
		s.RunReminderSweep(ctx)
	}

	for {
		next := s.nextRun()
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("reminder scheduler stopped")
			return
		case <-timer.C:
			s.RunReminderSweep(ctx)
		}
	}
}

// RunReminderSweep 执行一次提醒扫描：查出窗口内未完成、未归档的任务，
// 逐个给所有者发送提醒邮件。
//
// 每个任务独立处理，单个任务的通知失败或异常只记日志，
// 不会中断剩余任务的扫描，也不会向调用方抛出。
func (s *Scheduler) RunReminderSweep(ctx context.Context) {
	metrics.ReminderSweepsTotal.Inc()

	now := s.now().UTC()
	start, end := reminderWindow(now)

	var tasks []model.Task
	if err := s.db.WithContext(ctx).
		Where("completed = ? AND is_archived = ?", false, false).
		Where("end_date >= ? AND end_date <= ?", start, end).
		Find(&tasks).Error; err != nil {
		s.logger.Error("load due tasks failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("reminder sweep",
		slog.Time("window_start", start),
		slog.Time("window_end", end),
		slog.Int("matched", len(tasks)))
	metrics.ReminderTasksMatchedTotal.Add(float64(len(tasks)))

	for i := range tasks {
		s.remind(ctx, now, &tasks[i])
	}
}

// remind 给单个任务的所有者发送提醒。panic 与错误都被就地吞掉。
func (s *Scheduler) remind(ctx context.Context, now time.Time, t *model.Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("PANIC in reminder send",
				slog.Any("panic", r),
				slog.Uint64("task_id", uint64(t.ID)))
		}
	}()

	if t.EndDate == nil {
		return
	}

	var user model.User
	if err := s.db.WithContext(ctx).Select("email").Where("id = ?", t.UserID).First(&user).Error; err != nil {
		s.logger.Warn("load task owner failed",
			slog.Uint64("task_id", uint64(t.ID)),
			slog.String("error", err.Error()))
		return
	}

	daysUntilDue := int(math.Ceil(t.EndDate.Sub(now).Hours() / 24))

	sendCtx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.SendReminder(sendCtx, user.Email, t, daysUntilDue); err != nil {
		metrics.ReminderSendFailedTotal.Inc()
		s.logger.Warn("send reminder failed",
			slog.Uint64("task_id", uint64(t.ID)),
			slog.String("to", user.Email),
			slog.String("error", err.Error()))
		return
	}

	metrics.ReminderSentTotal.Inc()
	s.logger.Info("reminder sent",
		slog.Uint64("task_id", uint64(t.ID)),
		slog.String("to", user.Email),
		slog.Int("days_until_due", daysUntilDue))
}

// nextRun 计算下一次触发时刻（UTC 的 hourUTC 整点）。
func (s *Scheduler) nextRun() time.Time {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// reminderWindow 返回扫描窗口 [明天 00:00:00, 后天 23:59:59]（UTC，闭区间）。
func reminderWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := now.Add(24 * time.Hour).Truncate(24 * time.Hour)
	end := now.Add(48 * time.Hour).Truncate(24 * time.Hour).Add(24*time.Hour - time.Second)
	return start, end
}
