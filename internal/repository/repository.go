package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/apperr"
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB           *gorm.DB // 直接访问数据库
	Agent        *AgentRepository
	Experiment   *ExperimentRepository
	User         *UserRepository
	Personality  *PersonalityRepository
	Conversation *ConversationRepository
	Form         *FormRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:           db,
		Agent:        NewAgentRepository(db),
		Experiment:   NewExperimentRepository(db),
		User:         NewUserRepository(db),
		Personality:  NewPersonalityRepository(db),
		Conversation: NewConversationRepository(db),
		Form:         NewFormRepository(db),
	}
}

// notFound 把 gorm 的记录不存在转换为业务错误
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, format, args...)
	}
	return err
}
