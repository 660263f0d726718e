package testutil

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel 记录输入并返回预设回复的对话模型
type FakeChatModel struct {
	mu     sync.Mutex
	Reply  string
	Chunks []string
	Err    error
	Inputs [][]*schema.Message
}

var _ model.BaseChatModel = (*FakeChatModel)(nil)

// Generate 返回 Reply
func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.Err != nil {
		return nil, f.Err
	}
	return schema.AssistantMessage(f.Reply, nil), nil
}

// Stream 按 Chunks 逐段返回
func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.Err != nil {
		return nil, f.Err
	}
	msgs := make([]*schema.Message, 0, len(f.Chunks))
	for _, c := range f.Chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

// LastInput 最近一次调用的输入
func (f *FakeChatModel) LastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Inputs) == 0 {
		return nil
	}
	return f.Inputs[len(f.Inputs)-1]
}

// Calls 调用次数
func (f *FakeChatModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Inputs)
}

func (f *FakeChatModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inputs = append(f.Inputs, input)
}
