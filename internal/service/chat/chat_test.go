package chat

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/service/experiment"
	"github.com/ashwinyue/persona-chat/internal/service/session"
	"github.com/ashwinyue/persona-chat/internal/testutil"
)

type fakeProvider struct {
	cm  *testutil.FakeChatModel
	err error
}

func (p *fakeProvider) ChatModel(ctx context.Context, agent model.AgentSnapshot) (einomodel.BaseChatModel, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.cm, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	repos   *repository.Repositories
	cm      *testutil.FakeChatModel
	mr      *miniredis.Miniredis
	history *session.History
	agent   *model.Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	mr, client := testutil.NewTestRedis(t)
	cm := &testutil.FakeChatModel{Reply: "  Hello!  "}

	agent := testutil.NewAgent("Alice", model.StrategyMirroring)
	agent.PartialTraits = model.Traits{
		Openness: 40, Conscientiousness: 30, Extraversion: 20, Agreeableness: 35, Neuroticism: 10,
	}.Partial()
	testutil.SeedAgent(t, db, agent)

	exps := experiment.NewService(repos, experiment.NewSelector(rand.NewPCG(1, 2)), nil)
	history := session.NewHistory(client, time.Hour)
	svc := NewService(repos, exps, &fakeProvider{cm: cm}, history)
	return &fixture{svc: svc, db: db, repos: repos, cm: cm, mr: mr, history: history, agent: agent}
}

func (f *fixture) experiment(t *testing.T, mutate ...func(*model.Experiment)) *model.Experiment {
	t.Helper()
	return testutil.SeedSingleExperiment(t, f.db, f.agent.ID, mutate...)
}

func (f *fixture) participant(t *testing.T, exp *model.Experiment, name string) *model.User {
	t.Helper()
	return testutil.SeedUser(t, f.db, exp.ID, name, f.agent)
}

func (f *fixture) admin(t *testing.T) *model.User {
	t.Helper()
	u := &model.User{Username: "root", IsAdmin: true}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func TestCreateConversationParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t, func(e *model.Experiment) {
		e.MaxMessages = testutil.Int(3)
		e.MaxConversations = testutil.Int(1)
	})
	user := f.participant(t, exp, "p1")

	conv, err := f.svc.CreateConversation(ctx, user.ID, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.ConversationNumber)
	require.NotNil(t, conv.MaxMessages)
	assert.Equal(t, 3, *conv.MaxMessages)
	assert.Equal(t, f.agent.ID, conv.Agent.ID)

	msgs, err := f.svc.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hi, I'm Alice.", msgs[0].Content)
	assert.Equal(t, 1, msgs[0].MessageNumber)

	got, err := f.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumberOfConversations)
	require.NotNil(t, got.LLMPersonality)
	assert.Equal(t, model.StrategyMirroring, got.LLMPersonality.Strategy)
	assert.Equal(t, 40.0, *got.LLMPersonality.Openness)

	e, err := f.repos.Experiment.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.TotalSessions)
	assert.Equal(t, 1, e.OpenSessions)

	cached, ok, err := f.history.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 1)

	_, err = f.svc.CreateConversation(ctx, user.ID, exp.ID)
	assert.True(t, apperr.Is(err, apperr.KindLimitExceeded))
	assert.Equal(t, "Conversations limit exceeded", apperr.Message(err))
}

func TestCreateConversationAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t, func(e *model.Experiment) {
		e.MaxMessages = testutil.Int(3)
		e.MaxConversations = testutil.Int(1)
	})
	admin := f.admin(t)

	for i := 1; i <= 2; i++ {
		conv, err := f.svc.CreateConversation(ctx, admin.ID, exp.ID)
		require.NoError(t, err)
		assert.Equal(t, i, conv.ConversationNumber)
		assert.Nil(t, conv.MaxMessages)
		assert.Equal(t, f.agent.ID, conv.Agent.ID)
	}

	e, err := f.repos.Experiment.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Zero(t, e.TotalSessions)
	assert.Zero(t, e.OpenSessions)
}

func TestCreateConversationRejectsForeignExperiment(t *testing.T) {
	f := newFixture(t)
	exp := f.experiment(t)
	other := f.experiment(t)
	user := f.participant(t, exp, "p1")

	_, err := f.svc.CreateConversation(context.Background(), user.ID, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCreateConversationWithoutAgent(t *testing.T) {
	f := newFixture(t)
	exp := f.experiment(t)
	user := testutil.SeedUser(t, f.db, exp.ID, "bare", nil)

	_, err := f.svc.CreateConversation(context.Background(), user.ID, exp.ID)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestFinishClosesSessionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t)
	user := f.participant(t, exp, "p1")
	conv, err := f.svc.CreateConversation(ctx, user.ID, exp.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Finish(ctx, conv.ID))
	require.NoError(t, f.svc.Finish(ctx, conv.ID))

	e, err := f.repos.Experiment.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.TotalSessions)
	assert.Equal(t, 0, e.OpenSessions)

	got, err := f.svc.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinished)
}

func TestFinishAdminLeavesCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t)
	participant := f.participant(t, exp, "p1")
	_, err := f.svc.CreateConversation(ctx, participant.ID, exp.ID)
	require.NoError(t, err)

	conv, err := f.svc.CreateConversation(ctx, f.admin(t).ID, exp.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Finish(ctx, conv.ID))

	e, err := f.repos.Experiment.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.OpenSessions)
}

func TestCheckAccessAndListByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t)
	owner := f.participant(t, exp, "owner")
	stranger := f.participant(t, exp, "stranger")

	conv, err := f.svc.CreateConversation(ctx, owner.ID, exp.ID)
	require.NoError(t, err)

	_, err = f.svc.CheckAccess(ctx, conv.ID, owner.ID, false)
	assert.NoError(t, err)
	_, err = f.svc.CheckAccess(ctx, conv.ID, stranger.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.CheckAccess(ctx, conv.ID, stranger.ID, true)
	assert.NoError(t, err)
	_, err = f.svc.CheckAccess(ctx, "missing", owner.ID, true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	list, err := f.svc.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].Metadata.ID)
	assert.Len(t, list[0].Conversation, 1)
}
