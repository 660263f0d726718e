package service

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/agent"
	"github.com/ashwinyue/persona-chat/internal/service/auth"
	"github.com/ashwinyue/persona-chat/internal/service/callback"
	"github.com/ashwinyue/persona-chat/internal/service/chat"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
	"github.com/ashwinyue/persona-chat/internal/service/export"
	"github.com/ashwinyue/persona-chat/internal/service/form"
	"github.com/ashwinyue/persona-chat/internal/service/llm"
	"github.com/ashwinyue/persona-chat/internal/service/personality"
	"github.com/ashwinyue/persona-chat/internal/service/session"
	"github.com/ashwinyue/persona-chat/internal/service/user"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Agent       *agent.Service
	Experiment  *experiment.Service
	Auth        *auth.Service
	User        *user.Service
	Personality *personality.Service
	Chat        *chat.Service
	Form        *form.Service
	Export      *export.Service

	// 配置
	Config  *config.Config
	History *session.History
}

// Options 可替换的外部依赖，零值使用默认实现
type Options struct {
	// Models 对话模型提供方，默认按配置创建 OpenAI 兼容客户端
	Models chat.ModelProvider
	// HTTPClient 模型请求使用的客户端
	HTTPClient *http.Client
}

// NewServices 创建所有服务
// redisClient 为 nil 时不缓存会话历史
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client, log *zap.Logger, opts Options) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	authSvc, err := auth.NewService(repo, cfg.Auth)
	if err != nil {
		return nil, err
	}

	history := session.NewHistory(redisClient, time.Duration(cfg.Redis.HistoryTTL)*time.Second)
	experimentSvc := experiment.NewService(repo, experiment.NewSelector(nil), history)

	models := opts.Models
	if models == nil {
		models = llm.NewFactory(cfg.AI, opts.HTTPClient)
	}

	return &Services{
		Agent:       agent.NewService(repo, cfg.AI.DefaultModel),
		Experiment:  experimentSvc,
		Auth:        authSvc,
		User:        user.NewService(repo, experimentSvc, authSvc),
		Personality: personality.NewService(repo, experimentSvc),
		Chat:        chat.NewService(repo, experimentSvc, models, history, callback.NewLogger(log, cfg.App.Debug)),
		Form:        form.NewService(repo),
		Export:      export.NewService(repo),

		Config:  cfg,
		History: history,
	}, nil
}
