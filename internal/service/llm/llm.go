// Package llm 按智能体配置创建对话模型
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/model"
)

// Factory 根据智能体的模型与采样参数创建兼容 OpenAI 协议的对话模型
// 进程内共享一个 HTTP 客户端
type Factory struct {
	cfg        config.AIConfig
	httpClient *http.Client
}

// NewFactory 创建模型工厂，httpClient 为空时使用默认客户端
func NewFactory(cfg config.AIConfig, httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Factory{cfg: cfg, httpClient: httpClient}
}

// ChatModel 为智能体创建对话模型
func (f *Factory) ChatModel(ctx context.Context, agent model.AgentSnapshot) (einomodel.BaseChatModel, error) {
	cfg, err := f.buildConfig(agent)
	if err != nil {
		return nil, err
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return cm, nil
}

// buildConfig 未设置的采样参数保持 nil，由服务商使用默认值
func (f *Factory) buildConfig(agent model.AgentSnapshot) (*openai.ChatModelConfig, error) {
	var provider config.ProviderConfig
	switch f.cfg.Provider {
	case "", "openai":
		provider = f.cfg.OpenAI
	case "deepseek":
		provider = f.cfg.DeepSeek
	default:
		return nil, apperr.Configuration("unsupported ai provider: %s", f.cfg.Provider)
	}
	if provider.APIKey == "" {
		return nil, apperr.Configuration("api key is required for provider: %s", f.cfg.Provider)
	}

	modelName := agent.Model
	if modelName == "" {
		modelName = f.cfg.DefaultModel
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	spec := agent.AgentSpec.Clone()
	cfg := &openai.ChatModelConfig{
		APIKey:           provider.APIKey,
		BaseURL:          provider.BaseURL,
		HTTPClient:       f.httpClient,
		Model:            modelName,
		Temperature:      spec.Temperature,
		MaxTokens:        spec.MaxTokens,
		TopP:             spec.TopP,
		PresencePenalty:  spec.PresencePenalty,
		FrequencyPenalty: spec.FrequencyPenalty,
	}
	if len(spec.StopSequences) > 0 {
		cfg.Stop = spec.StopSequences
	}
	if provider.Timeout > 0 {
		cfg.Timeout = time.Duration(provider.Timeout) * time.Second
	}
	return cfg, nil
}
