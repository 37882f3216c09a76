package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 提醒系统相关的 Prometheus 指标。
var (
	ReminderSweepsTotal       prometheus.Counter
	ReminderTasksMatchedTotal prometheus.Counter
	ReminderSentTotal         prometheus.Counter
	ReminderSendFailedTotal   prometheus.Counter
	NotificationSentTotal     *prometheus.CounterVec
	NotificationFailedTotal   *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics 注册所有指标。重复调用是安全的（只注册一次）。
func InitMetrics() {
	initOnce.Do(func() {
		ReminderSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskkeeper_reminder_sweeps_total",
			Help: "Number of reminder sweeps executed.",
		})
		ReminderTasksMatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskkeeper_reminder_tasks_matched_total",
			Help: "Number of tasks matched by reminder sweeps.",
		})
		ReminderSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskkeeper_reminder_sent_total",
			Help: "Number of reminder emails sent successfully.",
		})
		ReminderSendFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskkeeper_reminder_send_failed_total",
			Help: "Number of reminder emails that failed to send.",
		})
		NotificationSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskkeeper_notification_sent_total",
			Help: "Number of notification emails sent, by kind.",
		}, []string{"kind"})
		NotificationFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskkeeper_notification_failed_total",
			Help: "Number of notification emails failed, by kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			ReminderSweepsTotal,
			ReminderTasksMatchedTotal,
			ReminderSentTotal,
			ReminderSendFailedTotal,
			NotificationSentTotal,
			NotificationFailedTotal,
		)
	})
}
