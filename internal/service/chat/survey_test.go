package chat

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/persona-chat/internal/apperr"
	"github.com/ashwinyue/persona-chat/internal/model"
	"github.com/ashwinyue/persona-chat/internal/testutil"
)

func fullSurvey() SurveyAnswers {
	answers := make(SurveyAnswers, model.PostConversationFields)
	for i := 1; i <= model.PostConversationFields; i++ {
		answers[surveyField(i)] = i % 5
	}
	return answers
}

func TestSurveyAnswersValidate(t *testing.T) {
	assert.NoError(t, fullSurvey().Validate())

	missing := fullSurvey()
	delete(missing, "field49")
	err := missing.Validate()
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "field49")

	extra := fullSurvey()
	extra["field51"] = 1
	assert.True(t, apperr.Is(extra.Validate(), apperr.KindValidation))

	odd := fullSurvey()
	odd["comment"] = 1
	assert.True(t, apperr.Is(odd.Validate(), apperr.KindValidation))
}

func TestSaveSurvey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	require.NoError(t, f.svc.SaveSurvey(ctx, conv.ID, fullSurvey()))
	got, err := f.svc.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.PostConversation, model.PostConversationFields)
	assert.Equal(t, 2, got.PostConversation["field2"])

	err = f.svc.SaveSurvey(ctx, "missing", fullSurvey())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)

	err := f.svc.UpdateMetadata(ctx, &MetadataRequest{
		ConversationID:    conv.ID,
		Data:              map[string]any{"mood": "good", "energy": float64(4)},
		IsPreConversation: true,
	})
	require.NoError(t, err)

	post := map[string]any{}
	for k, v := range fullSurvey() {
		post[k] = float64(v)
	}
	post["field3"] = "3"
	require.NoError(t, f.svc.UpdateMetadata(ctx, &MetadataRequest{ConversationID: conv.ID, Data: post}))

	got, err := f.svc.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "good", got.PreConversation["mood"])
	assert.Equal(t, 3, got.PostConversation["field3"])

	for _, bad := range []any{2.5, math.NaN(), math.Inf(-1), "x"} {
		post["field4"] = bad
		err = f.svc.UpdateMetadata(ctx, &MetadataRequest{ConversationID: conv.ID, Data: post})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%v", bad)
	}
}

func TestAnnotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exp := f.experiment(t, func(e *model.Experiment) { e.ExperimentFeatures.UserAnnotation = true })
	owner := f.participant(t, exp, "owner")
	stranger := f.participant(t, exp, "stranger")
	conv, err := f.svc.CreateConversation(ctx, owner.ID, exp.ID)
	require.NoError(t, err)
	reply, err := f.svc.SendMessage(ctx, conv.ID, "hi", nil)
	require.NoError(t, err)
	msgs, err := f.svc.GetMessages(ctx, conv.ID)
	require.NoError(t, err)

	got, err := f.svc.Annotate(ctx, owner.ID, false, &AnnotationRequest{MessageID: reply.ID, UserAnnotation: testutil.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, *got.UserAnnotation)

	stored, err := f.repos.Conversation.GetMessage(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserAnnotation)
	assert.Equal(t, 1, *stored.UserAnnotation)

	_, err = f.svc.Annotate(ctx, owner.ID, false, &AnnotationRequest{MessageID: reply.ID, UserAnnotation: testutil.Int(2)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Annotate(ctx, owner.ID, false, &AnnotationRequest{MessageID: msgs[1].ID, UserAnnotation: testutil.Int(1)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Annotate(ctx, stranger.ID, false, &AnnotationRequest{MessageID: reply.ID, UserAnnotation: testutil.Int(-1)})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAnnotateDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	reply, err := f.svc.SendMessage(ctx, conv.ID, "hi", nil)
	require.NoError(t, err)

	_, err = f.svc.Annotate(ctx, conv.UserID, false, &AnnotationRequest{MessageID: reply.ID, UserAnnotation: testutil.Int(1)})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
