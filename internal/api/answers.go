package api

import (
	"errors"
	"net/http"

	"log/slog"

	"codequery/internal/api/auth"
	"codequery/internal/model"
	"codequery/internal/pkg/metrics"
	"codequery/internal/vote"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type createAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type updateAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// handleListAnswers 返回某个提问下的全部回答。
func (s *Server) handleListAnswers(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.questions.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	answers, err := s.answers.ListByQuestion(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	views := make([]answerView, 0, len(answers))
	for _, a := range answers {
		views = append(views, newAnswerView(a))
	}
	c.JSON(http.StatusOK, gin.H{"answers": views})
}

// handleCreateAnswer 为提问添加回答。
// 挂在可选认证之后：未登录的请求产生匿名回答。
func (s *Server) handleCreateAnswer(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	var req createAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.questions.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	answer := model.Answer{
		QuestionID: id,
		Body:       req.Answer,
	}
	// 已识别的用户记为回答者，匿名回答不归属任何用户
	if userID, ok := auth.CurrentUserID(c); ok {
		if user, err := s.users.FindByID(ctx, userID); err == nil {
			answer.UserID = &user.ID
		}
	}

	if err := s.answers.Create(ctx, &answer); err != nil {
		if s.logger != nil {
			s.logger.Error("create answer failed", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	detailed, err := s.questions.Detailed(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"question": newQuestionView(detailed),
		"message":  "Answer added successfully",
	})
}

// handleIntelligentAnswer 调用生成式 AI 生成回答并覆盖提问的 AI 回答字段。
// 已有 AI 回答时会要求模型给出不同的回答。
func (s *Server) handleIntelligentAnswer(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	ctx := c.Request.Context()
	question, err := s.questions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	answer, err := s.generator.Generate(ctx, question.Body, question.IntelligentAnswer)
	if err != nil {
		if metrics.AIGenerationsTotal != nil {
			metrics.AIGenerationsTotal.WithLabelValues("error").Inc()
		}
		if s.logger != nil {
			s.logger.Error("generate intelligent answer failed", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}
	if metrics.AIGenerationsTotal != nil {
		metrics.AIGenerationsTotal.WithLabelValues("success").Inc()
	}

	question.IntelligentAnswer = answer
	if err := s.questions.Save(ctx, question); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	detailed, err := s.questions.Detailed(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": newQuestionView(detailed),
		"message":  "Intelligent answer added successfully",
	})
}

// guardAnswerOwner 与提问的所有权检查顺序一致：
// 提问存在 → 回答存在 → 操作者存在 → 回答归操作者所有。
// 匿名回答没有所有者，任何人都无权修改。
func (s *Server) guardAnswerOwner(c *gin.Context, questionID, answerID uint, action string) *model.Answer {
	ctx := c.Request.Context()

	if _, err := s.questions.FindByID(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return nil
	}

	answer, err := s.answers.FindByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return nil
	}

	userID, _ := auth.CurrentUserID(c)
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return nil
	}

	if answer.UserID == nil || *answer.UserID != user.ID {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "You are not authorized to " + action + " this answer"})
		return nil
	}

	return answer
}

// handleUpdateAnswer 更新回答正文（仅回答者）。
func (s *Server) handleUpdateAnswer(c *gin.Context) {
	questionID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}
	answerID, err := parseID(c.Param("answerId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
		return
	}

	var req updateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	answer := s.guardAnswerOwner(c, questionID, answerID, "update")
	if answer == nil {
		return
	}

	ctx := c.Request.Context()
	answer.Body = req.Answer
	if err := s.answers.Save(ctx, answer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	detailed, err := s.questions.Detailed(ctx, questionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": newQuestionView(detailed),
		"message":  "Answer updated successfully",
	})
}

// handleDeleteAnswer 删除回答及其投票（仅回答者）。
func (s *Server) handleDeleteAnswer(c *gin.Context) {
	questionID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}
	answerID, err := parseID(c.Param("answerId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
		return
	}

	answer := s.guardAnswerOwner(c, questionID, answerID, "delete")
	if answer == nil {
		return
	}

	ctx := c.Request.Context()
	if err := s.answers.Delete(ctx, answer.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	detailed, err := s.questions.Detailed(ctx, questionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": newQuestionView(detailed),
		"message":  "Answer deleted successfully",
	})
}

// handleUpvoteAnswer 切换赞成票。
func (s *Server) handleUpvoteAnswer(c *gin.Context) {
	s.toggleVote(c, vote.Up, "upvote", "Upvote updated successfully")
}

// handleDownvoteAnswer 切换反对票。
func (s *Server) handleDownvoteAnswer(c *gin.Context) {
	s.toggleVote(c, vote.Down, "downvote", "Downvote updated successfully")
}

// toggleVote 对 (回答, 投票人) 应用一次投票切换并持久化结果状态。
func (s *Server) toggleVote(c *gin.Context, direction int, action, successMsg string) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "You must be logged in to " + action + " an answer"})
		return
	}

	questionID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}
	answerID, err := parseID(c.Param("answerId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
		return
	}

	ctx := c.Request.Context()
	answer, err := s.answers.FindByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Answer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	ballot := ballotOf(*answer)
	next := vote.Next(ballot.State(userID), direction)

	if next == vote.None {
		err = s.answers.ClearVote(ctx, answer.ID, userID)
	} else {
		err = s.answers.SetVote(ctx, answer.ID, userID, next)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	if metrics.VoteTogglesTotal != nil {
		metrics.VoteTogglesTotal.WithLabelValues(action).Inc()
	}

	detailed, err := s.questions.Detailed(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": newQuestionView(detailed),
		"message":  successMsg,
	})
}
