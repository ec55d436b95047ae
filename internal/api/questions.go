package api

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"codequery/internal/api/auth"
	"codequery/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const genericErrMsg = "Something went wrong... Please try again"

type createQuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

type updateQuestionRequest struct {
	Question string `json:"question"`
}

// handleListQuestions 返回全部提问（按创建时间倒序，含提问者）。
func (s *Server) handleListQuestions(c *gin.Context) {
	questions, err := s.questions.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// handleSearchQuestions 按正文做大小写不敏感的子串匹配。
func (s *Server) handleSearchQuestions(c *gin.Context) {
	q := c.Query("q")
	questions, err := s.questions.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// handleGetQuestion 返回详细提问。
func (s *Server) handleGetQuestion(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	question, err := s.questions.Detailed(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": newQuestionView(question)})
}

// handleCreateQuestion 创建提问。
func (s *Server) handleCreateQuestion(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx := c.Request.Context()

	userID, _ := auth.CurrentUserID(c)
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	question := model.Question{
		Body:   req.Question,
		UserID: user.ID,
	}
	if err := s.questions.Create(ctx, &question); err != nil {
		if s.logger != nil {
			s.logger.Error("create question failed", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	detailed, err := s.questions.Detailed(ctx, question.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Question created successfully",
		"question": newQuestionView(detailed),
	})
}

// guardQuestionOwner 按固定顺序执行所有权检查：
// 提问存在 → 操作者存在 → 提问归操作者所有。
// 检查失败时已写入响应，返回 nil。
func (s *Server) guardQuestionOwner(c *gin.Context, id uint, action string) *model.Question {
	ctx := c.Request.Context()

	question, err := s.questions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
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

	if question.UserID != user.ID {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "You are not authorized to " + action + " this question"})
		return nil
	}

	return question
}

// handleUpdateQuestion 更新提问正文（仅提问者）。
func (s *Server) handleUpdateQuestion(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	var req updateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	question := s.guardQuestionOwner(c, id, "update")
	if question == nil {
		return
	}

	ctx := c.Request.Context()
	if req.Question != "" {
		question.Body = req.Question
	}
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
		"message":  "Question updated successfully",
	})
}

// handleDeleteQuestion 删除提问及其全部回答与投票，返回剩余提问列表。
func (s *Server) handleDeleteQuestion(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
		return
	}

	question := s.guardQuestionOwner(c, id, "delete")
	if question == nil {
		return
	}

	ctx := c.Request.Context()
	if err := s.questions.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	questions, err := s.questions.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"message":   "Question deleted successfully",
	})
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
