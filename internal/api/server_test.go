package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"log/slog"

	"codequery/internal/api/auth"
	"codequery/internal/config"
	"codequery/internal/model"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// memStore 同时实现 QuestionStore 和 AnswerStore 的内存版本，
// 让处理器测试不依赖真实数据库。
type memStore struct {
	questions map[uint]*model.Question
	answers   map[uint]*model.Answer
	votes     map[[2]uint]int // (answerID, userID) -> value

	nextQuestionID uint
	nextAnswerID   uint

	setVoteCalls   int
	clearVoteCalls int
}

func newMemStore() *memStore {
	return &memStore{
		questions: make(map[uint]*model.Question),
		answers:   make(map[uint]*model.Answer),
		votes:     make(map[[2]uint]int),
	}
}

func (m *memStore) addQuestion(userID uint, body string) *model.Question {
	m.nextQuestionID++
	q := &model.Question{ID: m.nextQuestionID, UserID: userID, Body: body}
	m.questions[q.ID] = q
	return q
}

func (m *memStore) addAnswer(questionID uint, userID *uint, body string) *model.Answer {
	m.nextAnswerID++
	a := &model.Answer{ID: m.nextAnswerID, QuestionID: questionID, UserID: userID, Body: body}
	m.answers[a.ID] = a
	return a
}

func (m *memStore) votesOf(answerID uint) []model.AnswerVote {
	votes := []model.AnswerVote{}
	for key, value := range m.votes {
		if key[0] == answerID {
			votes = append(votes, model.AnswerVote{AnswerID: key[0], UserID: key[1], Value: value})
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].UserID < votes[j].UserID })
	return votes
}

func (m *memStore) List(ctx context.Context) ([]model.Question, error) {
	questions := []model.Question{}
	for _, q := range m.questions {
		questions = append(questions, *q)
	}
	// 与数据库实现一致：最新的在前
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID > questions[j].ID })
	return questions, nil
}

func (m *memStore) Search(ctx context.Context, q string) ([]model.Question, error) {
	all, _ := m.List(ctx)
	matched := []model.Question{}
	for _, question := range all {
		if strings.Contains(strings.ToLower(question.Body), strings.ToLower(q)) {
			matched = append(matched, question)
		}
	}
	return matched, nil
}

func (m *memStore) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *q
	return &copied, nil
}

func (m *memStore) Detailed(ctx context.Context, id uint) (*model.Question, error) {
	q, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, _ := m.ListByQuestion(ctx, id)
	q.Answers = answers
	return q, nil
}

func (m *memStore) Create(ctx context.Context, question *model.Question) error {
	m.nextQuestionID++
	question.ID = m.nextQuestionID
	copied := *question
	m.questions[question.ID] = &copied
	return nil
}

func (m *memStore) Save(ctx context.Context, question *model.Question) error {
	copied := *question
	m.questions[question.ID] = &copied
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uint) error {
	for answerID, a := range m.answers {
		if a.QuestionID == id {
			for key := range m.votes {
				if key[0] == answerID {
					delete(m.votes, key)
				}
			}
			delete(m.answers, answerID)
		}
	}
	delete(m.questions, id)
	return nil
}

func (m *memStore) FindAnswerByID(ctx context.Context, id uint) (*model.Answer, error) {
	a, ok := m.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	copied.Votes = m.votesOf(id)
	return &copied, nil
}

func (m *memStore) ListByQuestion(ctx context.Context, questionID uint) ([]model.Answer, error) {
	answers := []model.Answer{}
	for _, a := range m.answers {
		if a.QuestionID == questionID {
			copied := *a
			copied.Votes = m.votesOf(a.ID)
			answers = append(answers, copied)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID > answers[j].ID })
	return answers, nil
}

func (m *memStore) CreateAnswer(ctx context.Context, answer *model.Answer) error {
	m.nextAnswerID++
	answer.ID = m.nextAnswerID
	copied := *answer
	m.answers[answer.ID] = &copied
	return nil
}

func (m *memStore) SaveAnswer(ctx context.Context, answer *model.Answer) error {
	copied := *answer
	copied.Votes = nil
	m.answers[answer.ID] = &copied
	return nil
}

func (m *memStore) DeleteAnswer(ctx context.Context, id uint) error {
	for key := range m.votes {
		if key[0] == id {
			delete(m.votes, key)
		}
	}
	delete(m.answers, id)
	return nil
}

func (m *memStore) SetVote(ctx context.Context, answerID, userID uint, value int) error {
	m.setVoteCalls++
	m.votes[[2]uint{answerID, userID}] = value
	return nil
}

func (m *memStore) ClearVote(ctx context.Context, answerID, userID uint) error {
	m.clearVoteCalls++
	delete(m.votes, [2]uint{answerID, userID})
	return nil
}

// answerStoreAdapter 桥接 memStore 与 AnswerStore 的方法名。
type answerStoreAdapter struct{ *memStore }

func (a answerStoreAdapter) FindByID(ctx context.Context, id uint) (*model.Answer, error) {
	return a.FindAnswerByID(ctx, id)
}
func (a answerStoreAdapter) Create(ctx context.Context, answer *model.Answer) error {
	return a.CreateAnswer(ctx, answer)
}
func (a answerStoreAdapter) Save(ctx context.Context, answer *model.Answer) error {
	return a.SaveAnswer(ctx, answer)
}
func (a answerStoreAdapter) Delete(ctx context.Context, id uint) error {
	return a.DeleteAnswer(ctx, id)
}

// memUserStore auth.UserStore 的内存实现。
type memUserStore struct {
	users map[uint]*model.User
}

func newMemUserStore(users ...*model.User) *memUserStore {
	s := &memUserStore{users: make(map[uint]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) FindByID(ctx context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memUserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = uint(len(s.users) + 1)
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) Save(ctx context.Context, user *model.User) error {
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, id uint) error {
	delete(s.users, id)
	return nil
}

func (s *memUserStore) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// stubGenerator 记录收到的提示内容并返回固定回答。
type stubGenerator struct {
	answer string
	err    error

	gotQuestion string
	gotPrevious string
}

func (g *stubGenerator) Generate(ctx context.Context, question, previousAnswer string) (string, error) {
	g.gotQuestion = question
	g.gotPrevious = previousAnswer
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

const testSessionCookie = "codequery_session"

// newTestServer 用内存存储和桩生成器装配一个完整路由的服务器。
func newTestServer(t *testing.T, store *memStore, users auth.UserStore, gen *stubGenerator) (*gin.Engine, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Security = config.SecurityConfig{JWTSecret: "test-secret", CookieName: testSessionCookie}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService(cfg.Security.JWTSecret, time.Hour, nil)

	if gen == nil {
		gen = &stubGenerator{answer: "stub"}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    gin.New(),
		tokens:    tokens,
		auth:      auth.NewHandler(users, tokens, cfg.Security.CookieName, logger),
		users:     users,
		questions: store,
		answers:   answerStoreAdapter{store},
		generator: gen,
	}
	s.registerRoutes()
	return s.router, tokens
}

// doRequest 发送一个请求；userID 非零时附带该用户的会话令牌。
func doRequest(t *testing.T, r *gin.Engine, tokens *auth.TokenService, userID uint, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		token, err := tokens.Issue(userID)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: token})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hashed)
}
