package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/ai"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset() *survey.Dataset {
	ts := time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)
	return &survey.Dataset{
		Roster: survey.NewRoster("walker", "ramos"),
		Students: []survey.StudentResponse{
			{TeacherKey: "walker", Task: survey.TaskT1, Timestamp: ts, Engaged: "Yes", LikedText: "walker-liked"},
			{TeacherKey: "ramos", Task: survey.TaskT1, Timestamp: ts.Add(time.Hour), Engaged: "No", LikedText: "ramos-liked"},
		},
		Reflections: []survey.TeacherReflection{
			{TeacherKey: "walker", FullName: "Jane Walker", Timestamp: ts, WentWell: "stations"},
		},
	}
}

func login(t *testing.T, identity string) *access.Session {
	t.Helper()
	st := access.NewSessionStore(access.Credentials{identity: "pw"})
	s, err := st.Login(identity, "pw")
	require.NoError(t, err)
	return s
}

func newAssistant(rt ai.Runtime) *Assistant {
	return New(rt, access.NewResolver(survey.NewRoster("walker", "ramos")), Config{}, nil)
}

func TestAsk_AppendsQuestionAndAnswer(t *testing.T) {
	var got ai.GenerateRequest
	rt := ai.RuntimeFunc(func(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
		got = req
		return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: " Engagement is mixed. "}}}}, nil
	})
	s := login(t, "walker")
	answer, err := newAssistant(rt).Ask(context.Background(), s, dataset(), "How's engagement?")
	require.NoError(t, err)
	assert.Equal(t, "Engagement is mixed.", answer)

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, access.RoleUser, h[0].Role)
	assert.Equal(t, "How's engagement?", h[0].Content)
	assert.Equal(t, access.RoleAssistant, h[1].Role)

	require.Len(t, got.Messages, 1)
	prompt := got.Messages[0].Content
	assert.Equal(t, 300, got.MaxTokens)
	assert.Contains(t, prompt, "walker-liked")
	assert.NotContains(t, prompt, "ramos-liked", "teachers only see their own students")
	assert.NotContains(t, prompt, "Recent Teacher Reflections")
}

func TestAsk_FailureKeepsQuestion(t *testing.T) {
	boom := errors.New("provider down")
	rt := ai.RuntimeFunc(func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
		return nil, boom
	})
	s := login(t, "walker")
	s.Append(access.RoleUser, "earlier")
	s.Append(access.RoleAssistant, "earlier answer")

	_, err := newAssistant(rt).Ask(context.Background(), s, dataset(), "What's confusing?")
	var askErr *AskError
	require.ErrorAs(t, err, &askErr)
	assert.ErrorIs(t, err, boom)

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "earlier answer", h[1].Content)
	assert.Equal(t, "What's confusing?", h[2].Content)
}

func TestAsk_EmptyAnswerIsFailure(t *testing.T) {
	rt := ai.RuntimeFunc(func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
		return &ai.GenerateResponse{}, nil
	})
	s := login(t, "walker")
	_, err := newAssistant(rt).Ask(context.Background(), s, dataset(), "q")
	var askErr *AskError
	assert.ErrorAs(t, err, &askErr)
	assert.Len(t, s.History(), 1)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s := login(t, "walker")
	_, err := newAssistant(nil).Ask(context.Background(), s, dataset(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, s.History())
}

func TestPrompt_AdminSeesEverything(t *testing.T) {
	p, err := newAssistant(nil).Prompt("admin", dataset(), "What patterns do you see?")
	require.NoError(t, err)
	assert.Contains(t, p, "walker-liked")
	assert.Contains(t, p, "ramos-liked")
	assert.Contains(t, p, "Jane Walker: Went well: \"stations\"")
	assert.Contains(t, p, "n=2")
}

func TestFitPrompt_DropsSamplesFirst(t *testing.T) {
	a := New(nil, access.NewResolver(survey.NewRoster("walker", "ramos")), Config{PromptLimit: 150}, nil)
	ds := dataset()
	for i := 0; i < 10; i++ {
		r := ds.Students[0]
		r.Timestamp = r.Timestamp.Add(time.Duration(i+2) * time.Hour)
		r.LikedText = strings.Repeat("long comment ", 10)
		ds.Students = append(ds.Students, r)
	}
	p, err := a.Prompt("admin", ds, "q")
	require.NoError(t, err)
	assert.Contains(t, p, "DATA (All Time, n=12):")
	assert.Contains(t, p, "Question: q")
	assert.LessOrEqual(t, len([]rune(p))/4, 150)
}

func TestLookupFAQ(t *testing.T) {
	f, ok := LookupFAQ("engagement")
	require.True(t, ok)
	assert.Equal(t, "How are engagement levels looking?", f.Question)
	_, ok = LookupFAQ("weather")
	assert.False(t, ok)
	assert.Len(t, FAQs, 4)
}
