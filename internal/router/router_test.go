package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/database"
	"github.com/ashwinyue/persona-chat/internal/handler"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service"
	"github.com/ashwinyue/persona-chat/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type provider struct{ cm *testutil.FakeChatModel }

func (p provider) ChatModel(ctx context.Context, agent model.AgentSnapshot) (einomodel.BaseChatModel, error) {
	return p.cm, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	engine  *gin.Engine
	svc     *service.Services
	db      *gorm.DB
	cm      *testutil.FakeChatModel
	admin   string
	agentID string
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)
	_, client := testutil.NewTestRedis(t)
	cm := &testutil.FakeChatModel{Reply: "Hello!", Chunks: []string{"Hel", "lo"}}

	cfg := &config.Config{
		App:    config.AppConfig{Name: "persona-chat", Version: "test"},
		Server: config.ServerConfig{CORSOrigins: []string{"*"}},
		Redis:  config.RedisConfig{HistoryTTL: 60},
		AI:     config.AIConfig{DefaultModel: "gpt-4o-mini"},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenTTL: 1, CookieName: "token"},
	}
	svc, err := service.NewServices(repository.NewRepositories(db), cfg, client, zap.NewNop(), service.Options{Models: provider{cm: cm}})
	require.NoError(t, err)

	s := &testServer{t: t, svc: svc, db: db, cm: cm}
	s.engine = SetupRouter(handler.NewHandlers(svc, &database.DB{DB: db}), svc, zap.NewNop())

	_, err = svc.Auth.CreateAdmin(context.Background(), "root", "secret-password")
	require.NoError(t, err)
	rec, env := s.do(http.MethodPost, "/api/users/login", "", map[string]any{"username": "root", "userPassword": "secret-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login handler.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	s.admin = login.Token
	return s
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

// setupExperiment 由管理员创建智能体和单智能体实验
func (s *testServer) setupExperiment(features map[string]bool) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/agents", s.admin, map[string]any{
		"title":               "Alice",
		"systemStarterPrompt": "You are Alice.",
		"firstChatSentence":   "Hi, I'm Alice.",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	s.agentID = decode[model.Agent](s.t, env).ID

	rec, env = s.do(http.MethodPost, "/api/experiments", s.admin, map[string]any{
		"title":              "Study",
		"isActive":           true,
		"agentsMode":         "Single",
		"activeAgent":        s.agentID,
		"maxMessages":        2,
		"experimentFeatures": features,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Experiment](s.t, env).ID
}

func (s *testServer) register(experimentID, username string) (string, *httptest.ResponseRecorder) {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/users", "", map[string]any{
		"experimentId": experimentID,
		"userInfo":     map[string]any{"username": username, "age": 30},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handler.TokenResponse](s.t, env).Token, rec
}

func TestParticipantConversationFlow(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(map[string]bool{"userAnnotation": true})

	token, rec := s.register(expID, "p1")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "token=")

	rec, env := s.do(http.MethodPost, "/api/conversations", token, map[string]any{"experimentId": expID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[model.Conversation](t, env)
	assert.Equal(t, 1, conv.ConversationNumber)

	rec, env = s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]any{"content": "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[model.Message](t, env)
	assert.Equal(t, "Hello!", reply.Content)
	assert.Equal(t, 3, reply.MessageNumber)

	rec, env = s.do(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Message](t, env), 3)

	rec, env = s.do(http.MethodPut, "/api/conversations/annotation", token, map[string]any{"messageId": reply.ID, "userAnnotation": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, *decode[model.Message](t, env).UserAnnotation)

	// maxMessages=2：允许两轮问答，第三轮超限
	rec, _ = s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]any{"content": "again"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, env = s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]any{"content": "more"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Message limit exceeded", env.Message)

	rec, _ = s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/finish", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var exp model.Experiment
	require.NoError(t, s.db.First(&exp, "id = ?", expID).Error)
	assert.Equal(t, 0, exp.OpenSessions)
	assert.Equal(t, 1, exp.NumberOfParticipants)

	rec, env = s.do(http.MethodGet, "/api/conversations/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, env), 1)
}

func TestStreamingMessage(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(map[string]bool{"streamMessage": true})
	token, _ := s.register(expID, "p1")

	_, env := s.do(http.MethodPost, "/api/conversations", token, map[string]any{"experimentId": expID})
	conv := decode[model.Conversation](t, env)

	rec, _ := s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages?stream=true", token, map[string]any{"content": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	start := strings.Index(body, `"type":"start"`)
	first := strings.Index(body, `"data":"Hel"`)
	end := strings.Index(body, `"type":"end"`)
	require.True(t, start >= 0 && first > start && end > first, body)
	assert.Contains(t, body, `"content":"Hello"`)

	msgs, err := s.svc.Chat.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hello", msgs[2].Content)
}

func TestStreamIgnoredWhenFeatureDisabled(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)
	token, _ := s.register(expID, "p1")
	_, env := s.do(http.MethodPost, "/api/conversations", token, map[string]any{"experimentId": expID})
	conv := decode[model.Conversation](t, env)

	rec, env := s.do(http.MethodPost, "/api/conversations/"+conv.ID+"/messages?stream=true", token, map[string]any{"content": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", decode[model.Message](t, env).Content)
}

func TestAccessControl(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)
	token, _ := s.register(expID, "p1")
	other, _ := s.register(expID, "p2")

	rec, _ := s.do(http.MethodGet, "/api/agents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/agents", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/data-aggregation/"+expID, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, env := s.do(http.MethodPost, "/api/conversations", token, map[string]any{"experimentId": expID})
	conv := decode[model.Conversation](t, env)
	rec, _ = s.do(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", s.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/conversations/missing/messages", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationErrors(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)
	s.register(expID, "p1")

	rec, env := s.do(http.MethodPost, "/api/users", "", map[string]any{
		"experimentId": expID, "userInfo": map[string]any{"username": "p1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User Already Exists", env.Message)

	rec, _ = s.do(http.MethodGet, "/api/users/validate?experimentId="+expID+"&username=p1", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/users/validate?experimentId="+expID+"&username=p9", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/users", "", map[string]any{"experimentId": expID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPatch, "/api/experiments/status", s.admin, map[string]any{"experiments": map[string]bool{expID: false}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env = s.do(http.MethodPost, "/api/users", "", map[string]any{
		"experimentId": expID, "userInfo": map[string]any{"username": "p2"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Experiment Is Not Active", env.Message)
}

func TestMeAndLogout(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)
	token, _ := s.register(expID, "p1")

	rec, env := s.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[handler.TokenResponse](t, env)
	assert.Equal(t, "p1", me.User.Username)
	assert.NotEmpty(t, me.Token)

	rec, _ = s.do(http.MethodPost, "/api/users/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestDeleteAgentInUse(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)

	rec, env := s.do(http.MethodDelete, "/api/agents/"+s.agentID, s.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	exps := decode[[]model.Experiment](t, env)
	require.Len(t, exps, 1)
	assert.Equal(t, expID, exps[0].ID)

	rec, _ = s.do(http.MethodDelete, "/api/experiments/"+expID, s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodDelete, "/api/agents/"+s.agentID, s.admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDataAggregationDownloads(t *testing.T) {
	s := newServer(t)
	expID := s.setupExperiment(nil)
	token, _ := s.register(expID, "p1")
	s.do(http.MethodPost, "/api/conversations", token, map[string]any{"experimentId": expID})

	rec, env := s.do(http.MethodGet, "/api/data-aggregation/"+expID, s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode[map[string]any](t, env)
	assert.EqualValues(t, 1, data["numberOfParticipants"])

	rec, _ = s.do(http.MethodGet, "/api/data-aggregation/"+expID+"/xlsx", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec, _ = s.do(http.MethodGet, "/api/data-aggregation/"+expID+"/csv?sheet=users", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Agent,Username"))

	rec, _ = s.do(http.MethodGet, "/api/data-aggregation/"+expID+"/csv?sheet=nope", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["database"])
	assert.Equal(t, "ok", health["redis"])

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
