package model

import "time"

// User 表示系统用户。
//
// ResetTokenHash 与 ResetTokenExpiresAt 只在密码重置流程进行中同时存在，
// 重置完成或重新发起申请时一并清除。
type User struct {
	ID                  uint       `gorm:"primaryKey"`                    // 用户 ID
	Email               string     `gorm:"type:varchar(191);uniqueIndex"` // 邮箱（唯一，既是登录名也是通知地址）
	Password            string     `gorm:"not null" json:"-"`             // bcrypt 哈希
	ResetTokenHash      string     `gorm:"type:varchar(64)" json:"-"`     // 密码重置令牌的 sha256 哈希
	ResetTokenExpiresAt *time.Time `json:"-"`                             // 重置令牌过期时间
	CreatedAt           time.Time  // 创建时间

	Tasks []Task `gorm:"foreignKey:UserID" json:"-"`
}
