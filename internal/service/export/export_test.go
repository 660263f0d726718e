package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/testutil"
)

func seed(t *testing.T) (*Service, *model.Experiment) {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	alice := testutil.SeedAgent(t, db, testutil.NewAgent("Alice", model.StrategyMirroring))
	bob := testutil.SeedAgent(t, db, testutil.NewAgent("Bob", model.StrategyNone))
	exp := testutil.SeedMultiExperiment(t, db, []model.AgentDistribution{
		{Agent: alice.ID, Dist: 50}, {Agent: bob.ID, Dist: 50},
	})

	u1 := testutil.SeedUser(t, db, exp.ID, "u1", alice)
	u1.PartialTraits = model.Traits{Openness: 1, Conscientiousness: 2, Extraversion: 3, Agreeableness: 4, Neuroticism: 5}.Partial()
	u1.LLMPersonality = &model.LLMPersonality{
		Strategy:      model.StrategyMirroring,
		PartialTraits: model.Traits{Openness: 40, Conscientiousness: 30, Extraversion: 20, Agreeableness: 35, Neuroticism: 10}.Partial(),
	}
	require.NoError(t, db.Save(u1).Error)
	require.NoError(t, repos.Personality.Upsert(ctx, &model.PersonalityScores{
		UserID: u1.ID, ExperimentID: exp.ID,
		Traits: model.Traits{Openness: 40, Conscientiousness: 30, Extraversion: 20, Agreeableness: 35, Neuroticism: 10},
	}))
	testutil.SeedUser(t, db, exp.ID, "u2", bob)
	testutil.SeedUser(t, db, exp.ID, "u3", alice)
	testutil.SeedUser(t, db, exp.ID, "u4", nil)

	conv := &model.Conversation{ExperimentID: exp.ID, UserID: u1.ID, ConversationNumber: 1, Agent: alice.Snapshot(), MessagesNumber: 1}
	require.NoError(t, repos.Conversation.Create(ctx, conv))
	for i, m := range []struct{ role, content string }{
		{model.RoleAssistant, "Hi, I'm Alice."},
		{model.RoleUser, "hello, world"},
		{model.RoleAssistant, "Hello!"},
	} {
		require.NoError(t, repos.Conversation.CreateMessage(ctx, &model.Message{
			ConversationID: conv.ID, ExperimentID: exp.ID, Role: m.role, Content: m.content, MessageNumber: i + 1,
		}))
	}
	return NewService(repos), exp
}

func TestExperimentDataGroupsByAgent(t *testing.T) {
	svc, exp := seed(t)

	data, err := svc.ExperimentData(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentsModeMulti, data.AgentsMode)
	assert.Equal(t, 4, data.NumberOfParticipants)
	require.Len(t, data.Agents, 3)

	byTitle := map[string]*AgentGroup{}
	for _, g := range data.Agents {
		byTitle[g.Condition.Title] = g
	}
	assert.Equal(t, 2, byTitle["Alice"].NumberOfParticipants)
	assert.Equal(t, 1, byTitle["Bob"].NumberOfParticipants)
	assert.Equal(t, 1, byTitle[unassignedTitle].NumberOfParticipants)

	var u1 *Participant
	for _, p := range byTitle["Alice"].Data {
		if p.User.Username == "u1" {
			u1 = p
		}
	}
	require.NotNil(t, u1)
	assert.Equal(t, 40.0, *u1.HumanPersonality.Openness)
	require.Len(t, u1.Conversations, 1)
	assert.Len(t, u1.Conversations[0].Conversation, 3)
}

func TestExperimentDataMissingExperiment(t *testing.T) {
	svc, _ := seed(t)
	_, err := svc.ExperimentData(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPersonalityString(t *testing.T) {
	assert.Equal(t, "", PersonalityString(nil))

	p := model.PartialTraits{Openness: testutil.Float64(40), Neuroticism: testutil.Float64(12.5)}
	assert.Equal(t,
		"Openness: 40, Conscientiousness: , Extraversion: , Agreeableness: , Neuroticism: 12.5",
		PersonalityString(&p))
}

func TestTablesMatchHeaders(t *testing.T) {
	svc, exp := seed(t)
	data, err := svc.ExperimentData(context.Background(), exp.ID)
	require.NoError(t, err)

	tables := Tables(data)
	assert.Len(t, tables[SheetAgents], 3)
	assert.Len(t, tables[SheetUsers], 4)
	assert.Len(t, tables[SheetConversations], 1)
	assert.Len(t, tables[SheetMessages], 3)
	for _, sheet := range Sheets {
		for _, row := range tables[sheet] {
			assert.Len(t, row, len(headers[sheet]), sheet)
		}
	}

	conv := tables[SheetConversations][0]
	assert.Equal(t, "Openness: 40, Conscientiousness: 30, Extraversion: 20, Agreeableness: 35, Neuroticism: 10", conv[8])
	assert.Equal(t, conv[8], conv[9])
}

func TestWriteCSV(t *testing.T) {
	svc, exp := seed(t)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(context.Background(), exp.ID, "messages", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, headers[SheetMessages], records[0])
	assert.Equal(t, "hello, world", records[2][8])
	assert.Equal(t, "u1", records[2][3])
	assert.Equal(t, "", records[2][7])

	err = svc.WriteCSV(context.Background(), exp.ID, "nope", &buf)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestWriteWorkbook(t *testing.T) {
	svc, exp := seed(t)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteWorkbook(context.Background(), exp.ID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, Sheets, f.GetSheetList())

	rows, err := f.GetRows(SheetUsers)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, headers[SheetUsers], rows[0])

	rows, err = f.GetRows(SheetMessages)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Hello!", rows[3][8])
}
