// Package callback 提供 Eino Callback 日志支持
package callback

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const maxLoggedContent = 200

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录对话模型的调用事件
type Logger struct {
	log         *zap.Logger
	EnableDebug bool // 是否记录输入输出内容
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调处理器
func NewLogger(log *zap.Logger, enableDebug bool) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("eino"), EnableDebug: enableDebug}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	fields := runFields(info)
	if in := model.ConvCallbackInput(input); in != nil {
		fields = append(fields, zap.Int("messages", len(in.Messages)))
		if l.EnableDebug && len(in.Messages) > 0 {
			fields = append(fields, zap.String("last", truncate(in.Messages[len(in.Messages)-1].Content)))
		}
	}
	l.log.Debug("component start", fields...)
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	fields := runFields(info)
	if out := model.ConvCallbackOutput(output); out != nil {
		if out.TokenUsage != nil {
			fields = append(fields,
				zap.Int("prompt_tokens", out.TokenUsage.PromptTokens),
				zap.Int("completion_tokens", out.TokenUsage.CompletionTokens),
			)
		}
		if l.EnableDebug && out.Message != nil {
			fields = append(fields, zap.String("output", truncate(out.Message.Content)))
		}
	}
	l.log.Debug("component end", fields...)
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.log.Error("component error", append(runFields(info), zap.Error(err))...)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
// 回调持有的流副本必须关闭
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	l.log.Debug("component stream input", runFields(info)...)
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	l.log.Debug("component stream output", runFields(info)...)
	return ctx
}

func runFields(info *callbacks.RunInfo) []zap.Field {
	if info == nil {
		return nil
	}
	return []zap.Field{
		zap.String("name", info.Name),
		zap.String("type", info.Type),
		zap.String("component", string(info.Component)),
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > maxLoggedContent {
		return string(r[:maxLoggedContent]) + "..."
	}
	return s
}
