package model

import (
	"time"
)

// Task 表示用户的一条待办任务。
//
// Completed 与 IsArchived 是两个独立的轴：任务可以同时处于已完成且已归档状态。
// 归档是软删除，归档后的任务默认不出现在列表中，除恢复外只读。
type Task struct {
	ID        uint      `json:"id" gorm:"primaryKey"` // 任务唯一标识
	CreatedAt time.Time `json:"createdAt"`            // 创建时间（创建后不可变）
	UpdatedAt time.Time `json:"-"`                    // 更新时间

	UserID uint `json:"userId" gorm:"not null;index"` // 所属用户 ID（创建后不可变）
	User   User `json:"-" gorm:"foreignKey:UserID"`   // 所属用户

	Title       string `json:"title" gorm:"not null"` // 标题（必填，非空）
	Description string `json:"description"`           // 描述（可选）

	Completed  bool       `json:"completed" gorm:"default:false"`  // 是否已完成
	IsArchived bool       `json:"isArchived" gorm:"default:false"` // 是否已归档
	EndDate    *time.Time `json:"endDate" gorm:"index"`            // 截止时间（可选，提醒扫描依赖该索引）
}
