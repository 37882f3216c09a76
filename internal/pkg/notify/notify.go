package notify

import (
	"context"

	"taskkeeper/internal/model"
)

// Notifier 定义邮件通知接口。
//
// 所有通知对调用方都是尽力而为：发送失败由调用方记录日志并继续，
// 不会回滚触发通知的任务变更。
type Notifier interface {
	// SendDueDate 在任务创建或截止时间变更时发送即时通知。
	SendDueDate(ctx context.Context, toEmail string, task *model.Task) error

	// SendReminder 发送定时扫描产生的到期提醒。
	//
	// 参数:
	//   daysUntilDue: 距离截止日的天数（向上取整）
	SendReminder(ctx context.Context, toEmail string, task *model.Task, daysUntilDue int) error

	// SendPasswordReset 发送密码重置链接。
	SendPasswordReset(ctx context.Context, toEmail string, resetURL string) error
}
