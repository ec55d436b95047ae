package model

import "time"

// User 表示注册用户。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                             // 用户 ID
	Username  string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"username"` // 用户名（唯一）
	Password  string    `gorm:"not null" json:"-"`                                // bcrypt 哈希
	Name      string    `gorm:"not null" json:"name"`                             // 展示名称
	CreatedAt time.Time `json:"createdAt"`                                        // 注册时间
}

// Question 表示一个提问。
//
// 提问归属于唯一的用户（创建后不可变更），可附带一条 AI 生成的回答。
// 回答与提问是一对多关系。
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"` // 提问唯一标识
	CreatedAt time.Time `json:"createdAt"`            // 创建时间
	UpdatedAt time.Time `json:"updatedAt"`            // 更新时间

	UserID uint  `gorm:"not null" json:"userId"`           // 提问者 ID
	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"` // 提问者

	Body              string `gorm:"type:text;not null" json:"question"`            // 提问正文
	IntelligentAnswer string `gorm:"type:text" json:"intelligentAnswer"`            // AI 生成的回答（空串表示尚未生成）
	Answers           []Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"` // 关联的回答列表
}

// Answer 表示针对某个提问的回答。
//
// UserID 为空表示匿名回答。投票通过 AnswerVote 关联表记录。
type Answer struct {
	ID        uint      `gorm:"primaryKey" json:"id"` // 回答唯一标识
	CreatedAt time.Time `json:"createdAt"`            // 创建时间
	UpdatedAt time.Time `json:"updatedAt"`            // 更新时间

	QuestionID uint  `gorm:"not null;index" json:"questionId"`        // 所属提问 ID
	UserID     *uint `json:"userId,omitempty"`                        // 回答者 ID（nil 表示匿名）
	User       *User `gorm:"foreignKey:UserID" json:"user,omitempty"` // 回答者

	Body string `gorm:"type:text;not null" json:"answer"` // 回答正文

	Votes []AnswerVote `gorm:"foreignKey:AnswerID" json:"-"` // 关联的投票记录
}

// AnswerVote 是回答与投票人的关联表。
//
// 每个 (回答, 投票人) 至多一行，Value 为 +1（赞成）或 -1（反对）。
// 单行记录本身即保证了赞成/反对的互斥性。
type AnswerVote struct {
	AnswerID uint `gorm:"primaryKey" json:"answerId"` // 回答 ID
	UserID   uint `gorm:"primaryKey" json:"userId"`   // 投票人 ID
	Value    int  `gorm:"not null" json:"value"`      // +1: 赞成, -1: 反对

	CreatedAt time.Time `json:"createdAt"` // 投票时间
}

// Vote 方向常量。
const (
	VoteUp   = 1
	VoteDown = -1
)
