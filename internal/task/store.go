package task

import (
	"context"
	"errors"

	"taskkeeper/internal/model"

	"gorm.io/gorm"
)

// Store 定义任务持久化接口。
//
// 所有方法都以 ownerID 为作用域：无论 taskID 是否被猜中，
// 都不会返回或修改属于其他用户的任务。
type Store interface {
	List(ctx context.Context, ownerID uint, includeArchived bool) ([]model.Task, error)
	Get(ctx context.Context, ownerID, taskID uint) (*model.Task, error)
	Create(ctx context.Context, t *model.Task) error
	Update(ctx context.Context, ownerID, taskID uint, patch map[string]interface{}) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID uint) error
	OwnerEmail(ctx context.Context, ownerID uint) (string, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore 创建基于 gorm 的任务存储。
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) List(ctx context.Context, ownerID uint, includeArchived bool) ([]model.Task, error) {
	tasks := []model.Task{}
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if err := q.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *gormStore) Get(ctx context.Context, ownerID, taskID uint) (*model.Task, error) {
	var t model.Task
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, ownerID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) Create(ctx context.Context, t *model.Task) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *gormStore) Update(ctx context.Context, ownerID, taskID uint, patch map[string]interface{}) (*model.Task, error) {
	if err := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND user_id = ?", taskID, ownerID).
		Updates(patch).Error; err != nil {
		return nil, err
	}
	// Updates 在值未变化时 RowsAffected 为 0，存在性统一由回读判定。
	return s.Get(ctx, ownerID, taskID)
}

func (s *gormStore) Delete(ctx context.Context, ownerID, taskID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", taskID, ownerID).Delete(&model.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) OwnerEmail(ctx context.Context, ownerID uint) (string, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Select("email").Where("id = ?", ownerID).First(&user).Error; err != nil {
		return "", err
	}
	return user.Email, nil
}
