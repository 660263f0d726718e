package handler

import (
	"github.com/ashwinyue/persona-chat/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Agent        *AgentHandler
	Experiment   *ExperimentHandler
	Auth         *AuthHandler
	Personality  *PersonalityHandler
	Conversation *ConversationHandler
	Form         *FormHandler
	Data         *DataHandler
	System       *SystemHandler
}

// NewHandlers 创建所有处理器
// db 用于健康检查，可为 nil
func NewHandlers(svc *service.Services, db Pinger) *Handlers {
	return &Handlers{
		Agent:        NewAgentHandler(svc),
		Experiment:   NewExperimentHandler(svc),
		Auth:         NewAuthHandler(svc),
		Personality:  NewPersonalityHandler(svc),
		Conversation: NewConversationHandler(svc),
		Form:         NewFormHandler(svc),
		Data:         NewDataHandler(svc),
		System:       NewSystemHandler(svc, db),
	}
}
