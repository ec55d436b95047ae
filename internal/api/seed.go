package api

import (
	"context"
	"errors"

	"codequery/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedDemoData 初始化演示数据：一个演示用户和一条带回答的提问。
// 已存在时跳过。
func (s *Server) SeedDemoData(ctx context.Context) error {
	const demoUsername = "codequery"

	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", demoUsername).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return nil
	}

	hash, hashErr := bcrypt.GenerateFromPassword([]byte("codequery-demo"), 12)
	if hashErr != nil {
		return hashErr
	}
	user = model.User{
		Username: demoUsername,
		Password: string(hash),
		Name:     "CodeQuery",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}

	question := model.Question{
		UserID: user.ID,
		Body:   "How do I reverse a string in Go?",
	}
	if err := s.db.WithContext(ctx).Create(&question).Error; err != nil {
		return err
	}

	answer := model.Answer{
		QuestionID: question.ID,
		UserID:     &user.ID,
		Body:       "Convert it to a []rune, swap from both ends, and convert back to a string.",
	}
	return s.db.WithContext(ctx).Create(&answer).Error
}
