package task

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"taskkeeper/internal/model"
	"taskkeeper/internal/pkg/metrics"
	"taskkeeper/internal/pkg/notify"
)

// Manager 负责校验并执行任务状态变更。
//
// Manager 自身无状态，所有状态都在 Store 中，每个请求可以并发独立处理。
// 截止时间相关的即时通知是尽力而为的副作用：发送失败只记日志，
// 不会使触发它的变更失败，也不会回滚。
type Manager struct {
	store         Store
	notifier      notify.Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration
}

// CreateRequest 创建任务的输入。
type CreateRequest struct {
	Title       string
	Description string
	EndDate     *time.Time
}

// UpdateRequest 更新任务的输入，nil 字段表示不修改。
type UpdateRequest struct {
	Title       *string
	Description *string
	EndDate     *time.Time
	Completed   *bool
}

// NewManager 创建任务生命周期管理器。
//
// 参数:
//
//	store: 任务存储
//	notifier: 邮件通知器（可以为 nil，表示关闭即时通知）
//	logger: 日志记录器
//	notifyTimeout: 单次通知发送超时（<=0 时使用 5s）
func NewManager(store Store, notifier notify.Notifier, logger *slog.Logger, notifyTimeout time.Duration) *Manager {
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &Manager{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: notifyTimeout,
	}
}

// Create 为 owner 创建一个新任务。
//
// 标题为空返回 ErrValidation，不会写入任何记录。
// 如果设置了截止时间，创建成功后立即给所有者发送一封通知邮件。
func (m *Manager) Create(ctx context.Context, ownerID uint, req CreateRequest) (*model.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrValidation
	}

	t := &model.Task{
		UserID:      ownerID,
		Title:       title,
		Description: req.Description,
		EndDate:     req.EndDate,
	}
	if err := m.store.Create(ctx, t); err != nil {
		return nil, err
	}

	if t.EndDate != nil {
		m.notifyDueDate(ownerID, t)
	}
	return t, nil
}

// Update 更新 owner 名下的任务，一次性应用所有提供的字段。
//
// 任务不存在或不属于 owner 返回 ErrNotFound；任务已归档返回 ErrArchived
// （归档任务除恢复外只读）。截止时间发生变化时发送尽力而为的通知。
func (m *Manager) Update(ctx context.Context, ownerID, taskID uint, req UpdateRequest) (*model.Task, error) {
	existing, err := m.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if existing.IsArchived {
		return nil, ErrArchived
	}

	patch := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrValidation
		}
		patch["title"] = title
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	endDateChanged := false
	if req.EndDate != nil {
		endDateChanged = existing.EndDate == nil || !existing.EndDate.Equal(*req.EndDate)
		patch["end_date"] = *req.EndDate
	}
	if req.Completed != nil {
		patch["completed"] = *req.Completed
	}
	if len(patch) == 0 {
		return existing, nil
	}

	updated, err := m.store.Update(ctx, ownerID, taskID, patch)
	if err != nil {
		return nil, err
	}

	if endDateChanged {
		m.notifyDueDate(ownerID, updated)
	}
	return updated, nil
}

// ToggleComplete 翻转任务的完成状态。
//
// 已归档的任务不可标记，直接原样返回（防御性 no-op）。
func (m *Manager) ToggleComplete(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	existing, err := m.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if existing.IsArchived {
		return existing, nil
	}
	return m.store.Update(ctx, ownerID, taskID, map[string]interface{}{
		"completed": !existing.Completed,
	})
}

// Archive 归档任务（软删除）。幂等：重复归档直接返回当前任务。
func (m *Manager) Archive(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	existing, err := m.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if existing.IsArchived {
		return existing, nil
	}
	return m.store.Update(ctx, ownerID, taskID, map[string]interface{}{
		"is_archived": true,
	})
}

// Restore 恢复已归档的任务。幂等：未归档的任务直接返回。
func (m *Manager) Restore(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	existing, err := m.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if !existing.IsArchived {
		return existing, nil
	}
	return m.store.Update(ctx, ownerID, taskID, map[string]interface{}{
		"is_archived": false,
	})
}

// Delete 永久删除任务。任务不存在或不属于 owner 返回 ErrNotFound。
func (m *Manager) Delete(ctx context.Context, ownerID, taskID uint) error {
	return m.store.Delete(ctx, ownerID, taskID)
}

// List 返回 owner 名下的任务，按创建时间倒序。
//
// includeArchived 为 false（默认）时不含已归档任务。
func (m *Manager) List(ctx context.Context, ownerID uint, includeArchived bool) ([]model.Task, error) {
	tasks, err := m.store.List(ctx, ownerID, includeArchived)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// notifyDueDate 给任务所有者发送截止时间即时通知（尽力而为）。
//
// 使用独立的超时上下文，不随请求取消；失败只记 Warn 日志。
func (m *Manager) notifyDueDate(ownerID uint, t *model.Task) {
	if m.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
	defer cancel()

	email, err := m.store.OwnerEmail(ctx, ownerID)
	if err != nil {
		m.logger.Warn("load owner email failed",
			slog.Uint64("task_id", uint64(t.ID)),
			slog.String("error", err.Error()))
		return
	}

	if err := m.notifier.SendDueDate(ctx, email, t); err != nil {
		metrics.NotificationFailedTotal.WithLabelValues("due_date").Inc()
		m.logger.Warn("send due date notification failed",
			slog.Uint64("task_id", uint64(t.ID)),
			slog.String("error", err.Error()))
		return
	}
	metrics.NotificationSentTotal.WithLabelValues("due_date").Inc()
}
