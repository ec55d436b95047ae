package api

import (
	"context"
	"strings"

	"codequery/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type dbQuestionStore struct {
	db *gorm.DB
}

func (s dbQuestionStore) List(ctx context.Context) ([]model.Question, error) {
	var questions []model.Question
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (s dbQuestionStore) Search(ctx context.Context, q string) ([]model.Question, error) {
	var questions []model.Question
	pattern := "%" + strings.ToLower(q) + "%"
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("LOWER(body) LIKE ?", pattern).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (s dbQuestionStore) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var question model.Question
	if err := s.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// Detailed 加载提问及其提问者、全部回答（按创建时间倒序，含回答者与投票）。
func (s dbQuestionStore) Detailed(ctx context.Context, id uint) (*model.Question, error) {
	var question model.Question
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.created_at DESC")
		}).
		Preload("Answers.User").
		Preload("Answers.Votes").
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (s dbQuestionStore) Create(ctx context.Context, question *model.Question) error {
	return s.db.WithContext(ctx).Create(question).Error
}

func (s dbQuestionStore) Save(ctx context.Context, question *model.Question) error {
	return s.db.WithContext(ctx).Save(question).Error
}

// Delete 在单个事务中删除提问、其全部回答及回答上的投票。
func (s dbQuestionStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answerIDs []uint
		if err := tx.Model(&model.Answer{}).
			Where("question_id = ?", id).
			Pluck("id", &answerIDs).Error; err != nil {
			return err
		}
		if len(answerIDs) > 0 {
			if err := tx.Where("answer_id IN ?", answerIDs).Delete(&model.AnswerVote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id = ?", id).Delete(&model.Answer{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}

type dbAnswerStore struct {
	db *gorm.DB
}

func (s dbAnswerStore) FindByID(ctx context.Context, id uint) (*model.Answer, error) {
	var answer model.Answer
	if err := s.db.WithContext(ctx).Preload("Votes").First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (s dbAnswerStore) ListByQuestion(ctx context.Context, questionID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Votes").
		Where("question_id = ?", questionID).
		Order("created_at DESC").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (s dbAnswerStore) Create(ctx context.Context, answer *model.Answer) error {
	return s.db.WithContext(ctx).Create(answer).Error
}

func (s dbAnswerStore) Save(ctx context.Context, answer *model.Answer) error {
	return s.db.WithContext(ctx).Save(answer).Error
}

// Delete 在单个事务中删除回答及其投票。
func (s dbAnswerStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", id).Delete(&model.AnswerVote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Answer{}, id).Error
	})
}

// SetVote 写入或覆盖 (回答, 投票人) 的投票方向。
func (s dbAnswerStore) SetVote(ctx context.Context, answerID, userID uint, value int) error {
	vote := model.AnswerVote{AnswerID: answerID, UserID: userID, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&vote).Error
}

// ClearVote 撤销 (回答, 投票人) 的投票。
func (s dbAnswerStore) ClearVote(ctx context.Context, answerID, userID uint) error {
	return s.db.WithContext(ctx).
		Where("answer_id = ? AND user_id = ?", answerID, userID).
		Delete(&model.AnswerVote{}).Error
}
