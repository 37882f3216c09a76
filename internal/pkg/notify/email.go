package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskkeeper/internal/config"
	"taskkeeper/internal/model"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendDueDate 发送任务截止时间设定/变更的即时通知。
func (n *EmailNotifier) SendDueDate(ctx context.Context, toEmail string, task *model.Task) error {
	if task == nil || task.EndDate == nil {
		return nil
	}
	subject := fmt.Sprintf("[TaskKeeper] Due date set: %s", task.Title)
	body := n.buildTaskBody(task, fmt.Sprintf("Your task is due on <b>%s</b>.", formatDate(*task.EndDate)))
	return n.send(toEmail, subject, body)
}

// SendReminder 发送到期提醒邮件。
func (n *EmailNotifier) SendReminder(ctx context.Context, toEmail string, task *model.Task, daysUntilDue int) error {
	if task == nil || task.EndDate == nil {
		return nil
	}
	dayWord := "days"
	if daysUntilDue == 1 {
		dayWord = "day"
	}
	subject := fmt.Sprintf("[TaskKeeper] Reminder: %s is due in %d %s", task.Title, daysUntilDue, dayWord)
	body := n.buildTaskBody(task, fmt.Sprintf("This task is due in <b>%d %s</b> (%s).", daysUntilDue, dayWord, formatDate(*task.EndDate)))
	return n.send(toEmail, subject, body)
}

// SendPasswordReset 发送密码重置链接。
func (n *EmailNotifier) SendPasswordReset(ctx context.Context, toEmail string, resetURL string) error {
	if strings.TrimSpace(resetURL) == "" {
		return fmt.Errorf("empty reset url")
	}
	subject := "[TaskKeeper] Password reset"
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>TaskKeeper password reset</h2>
    <p>We received a request to reset the password for this address.</p>
    <div style="text-align:center; margin: 16px 0;">
      <a style="display:inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold;" href="%s">Reset password</a>
    </div>
    <p>The link is valid for 1 hour. If you did not request a reset, you can ignore this email.</p>
  </div>
</body>
</html>`, resetURL)
	return n.send(toEmail, subject, body)
}

func (n *EmailNotifier) send(toEmail, subject, body string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email notification sent", slog.String("to", toEmail), slog.String("subject", subject))
	return nil
}

func (n *EmailNotifier) buildTaskBody(task *model.Task, lead string) string {
	desc := ""
	if strings.TrimSpace(task.Description) != "" {
		desc = fmt.Sprintf(`<div style="color:#6b7280; margin-bottom: 12px;">%s</div>`, task.Description)
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .title { font-size: 20px; font-weight: bold; margin-bottom: 8px; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[TaskKeeper] Task notification</div>
    <div class="content">
      <div class="title">%s</div>
      %s
      <div>%s</div>
      <div class="footer">You are receiving this because the task has a due date set.</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, task.Title, desc, lead)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006")
}
