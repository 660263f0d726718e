package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
)

// 工作表名称
const (
	SheetAgents        = "Agents"
	SheetUsers         = "Users"
	SheetConversations = "Conversations"
	SheetMessages      = "Messages"
)

// Sheets 导出顺序
var Sheets = []string{SheetAgents, SheetUsers, SheetConversations, SheetMessages}

var headers = map[string][]string{
	SheetAgents: {
		"Number of Participants", "Condition Title", "Summary", "System Starter Prompt",
		"Before User Sentence Prompt", "After User Sentence Prompt", "First Chat Sentence",
		"Model", "Temperature", "Max Tokens", "Top P", "Frequency Penalty", "Presence Penalty",
		"Stop Sequences", "Personality Strategy", "Agent Openness", "Agent Conscientiousness",
		"Agent Extraversion", "Agent Agreeableness", "Agent Neuroticism",
	},
	SheetUsers: {
		"Agent", "Username", "Number of Conversations", "Age", "Gender", "Created At",
		"Openness", "Conscientiousness", "Extraversion", "Agreeableness", "Neuroticism",
	},
	SheetConversations: {
		"Conversation ID", "Agent", "User", "Conversation Number", "Number Of Messages",
		"Created At", "Last Message Date", "Finished", "Human Personality", "LLM Personality",
	},
	SheetMessages: {
		"Conversation ID", "Message ID", "Agent", "User", "Conversation Number",
		"Message Number", "Role", "User Annotation", "Content", "Created At",
	},
}

// Tables 把汇总数据展开为四张表，每行与表头一一对应
func Tables(data *ExperimentData) map[string][][]any {
	tables := make(map[string][][]any, len(Sheets))
	for _, g := range data.Agents {
		c := g.Condition
		title := c.Title
		strategy := string(c.PersonalityStrategy)
		if strategy == "" {
			strategy = string(model.StrategyBaseline)
		}
		tables[SheetAgents] = append(tables[SheetAgents], []any{
			g.NumberOfParticipants, title, c.Summary, c.SystemStarterPrompt,
			c.BeforeUserSentencePrompt, c.AfterUserSentencePrompt, c.FirstChatSentence,
			c.Model, ptr(c.Temperature), ptr(c.MaxTokens), ptr(c.TopP), ptr(c.FrequencyPenalty), ptr(c.PresencePenalty),
			strings.Join(c.StopSequences, ", "), strategy,
			ptr(c.Openness), ptr(c.Conscientiousness), ptr(c.Extraversion), ptr(c.Agreeableness), ptr(c.Neuroticism),
		})

		for _, p := range g.Data {
			u := p.User
			h := p.HumanPersonality
			tables[SheetUsers] = append(tables[SheetUsers], []any{
				title, u.Username, p.NumberOfConversations, ptr(u.Age), u.Gender, u.CreatedAt,
				ptr(h.Openness), ptr(h.Conscientiousness), ptr(h.Extraversion), ptr(h.Agreeableness), ptr(h.Neuroticism),
			})

			human := PersonalityString(&h)
			var llm string
			if u.LLMPersonality != nil {
				llm = PersonalityString(&u.LLMPersonality.PartialTraits)
			}
			for _, conv := range p.Conversations {
				m := conv.Metadata
				tables[SheetConversations] = append(tables[SheetConversations], []any{
					m.ID, title, u.Username, m.ConversationNumber, m.MessagesNumber,
					m.CreatedAt, ptr(m.LastMessageDate), m.IsFinished, human, llm,
				})
				for _, msg := range conv.Conversation {
					tables[SheetMessages] = append(tables[SheetMessages], []any{
						m.ID, msg.ID, title, u.Username, m.ConversationNumber,
						msg.MessageNumber, msg.Role, ptr(msg.UserAnnotation), msg.Content, msg.CreatedAt,
					})
				}
			}
		}
	}
	return tables
}

func ptr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// WriteWorkbook 导出包含四个工作表的 xlsx
func (s *Service) WriteWorkbook(ctx context.Context, experimentID string, w io.Writer) error {
	data, err := s.ExperimentData(ctx, experimentID)
	if err != nil {
		return err
	}
	return writeWorkbook(Tables(data), w)
}

func writeWorkbook(tables map[string][][]any, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to name sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		header := make([]any, 0, len(headers[sheet]))
		for _, h := range headers[sheet] {
			header = append(header, h)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		for r, row := range tables[sheet] {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, r+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV 导出单张表的 CSV
func (s *Service) WriteCSV(ctx context.Context, experimentID, sheet string, w io.Writer) error {
	header, ok := headers[sheetName(sheet)]
	if !ok {
		return apperr.Validation("unknown sheet: %s", sheet)
	}
	data, err := s.ExperimentData(ctx, experimentID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(header))
	for _, row := range Tables(data)[sheetName(sheet)] {
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// sheetName 忽略大小写匹配工作表
func sheetName(s string) string {
	for _, name := range Sheets {
		if strings.EqualFold(name, s) {
			return name
		}
	}
	return s
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}
