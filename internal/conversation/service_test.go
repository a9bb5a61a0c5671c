// ABOUTME: Tests for ConversationService
// ABOUTME: Verifies ownership isolation, validation, record-first persistence, and agent failures

package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/minecraft-ai/internal/agent"
	"github.com/2389/minecraft-ai/internal/store"
)

// recordingInvoker implements agent.Invoker and keeps every history it sees.
type recordingInvoker struct {
	mu        sync.Mutex
	histories [][]agent.Turn
	reply     func(history []agent.Turn) agent.Result
}

func (r *recordingInvoker) Invoke(ctx context.Context, history []agent.Turn) agent.Result {
	r.mu.Lock()
	r.histories = append(r.histories, append([]agent.Turn(nil), history...))
	r.mu.Unlock()
	if r.reply == nil {
		return agent.Ok("reply")
	}
	return r.reply(history)
}

func (r *recordingInvoker) last() []agent.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.histories) == 0 {
		return nil
	}
	return r.histories[len(r.histories)-1]
}

func (r *recordingInvoker) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.histories)
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_CreateConversation(t *testing.T) {
	svc := New(store.NewMockStore(), &recordingInvoker{}, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{Topic: "Test"})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())
	assert.Equal(t, "Test", conv.Topic)
	assert.Equal(t, "key-a", conv.Owner)

	list, err := svc.ListConversations(ctx, "key-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)
}

func TestService_CreateConversation_DefaultTopic(t *testing.T) {
	svc := New(store.NewMockStore(), nil, nil)
	ctx := context.Background()

	for _, topic := range []string{"", "   ", "\t\n"} {
		conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{Topic: topic})
		require.NoError(t, err)
		assert.Equal(t, store.DefaultTopic, conv.Topic)
	}
}

func TestService_CreateConversation_PlayerTags(t *testing.T) {
	svc := New(store.NewMockStore(), nil, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{
		PlayerUUID:     " uuid-steve ",
		PlayerUsername: "Steve",
	})
	require.NoError(t, err)
	assert.Equal(t, "uuid-steve", conv.PlayerUUID)
	assert.Equal(t, "Steve", conv.PlayerUsername)

	_, err = svc.CreateConversation(ctx, "key-a", CreateParams{PlayerUsername: "Alex"})
	require.NoError(t, err)

	list, err := svc.ListConversations(ctx, "key-a", ListFilter{PlayerUsername: "Steve"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)
}

func TestService_EmptyOwnerRejected(t *testing.T) {
	svc := New(store.NewMockStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateConversation(ctx, "", CreateParams{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ListConversations(ctx, "", ListFilter{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_ListConversations_OwnerIsolation(t *testing.T) {
	svc := New(createTestStore(t), nil, nil)
	ctx := context.Background()

	owners := []string{"key-a", "key-b", "key-c"}
	created := map[string][]string{}
	for i := range 4 {
		for _, owner := range owners {
			conv, err := svc.CreateConversation(ctx, owner, CreateParams{Topic: strings.Repeat("x", i+1)})
			require.NoError(t, err)
			created[owner] = append(created[owner], conv.ID)
		}
	}

	for _, owner := range owners {
		list, err := svc.ListConversations(ctx, owner, ListFilter{})
		require.NoError(t, err)
		require.Len(t, list, 4)
		for i, conv := range list {
			assert.Equal(t, owner, conv.Owner)
			assert.Equal(t, created[owner][i], conv.ID, "creation order")
		}
	}
}

func TestService_AddMessage_RecordsExchange(t *testing.T) {
	testStore := createTestStore(t)
	inv := &recordingInvoker{reply: func(h []agent.Turn) agent.Result {
		return agent.Ok("Craft it with 3 wool and 3 planks.")
	}}
	svc := New(testStore, inv, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{Topic: "Beds"})
	require.NoError(t, err)

	reply, err := svc.AddMessage(ctx, "key-a", conv.ID, "How do I make a bed?")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAssistant, reply.Role)
	assert.Equal(t, "Craft it with 3 wool and 3 planks.", reply.Body)
	assert.Equal(t, 2, reply.Ordinal)

	msgs, err := testStore.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "How do I make a bed?", msgs[0].Body)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)

	assert.Equal(t, []agent.Turn{{Role: agent.RoleUser, Content: "How do I make a bed?"}}, inv.last())
}

func TestService_AddMessage_ReplaysHistoryInOrder(t *testing.T) {
	inv := &recordingInvoker{reply: func(h []agent.Turn) agent.Result {
		return agent.Ok("answer " + h[len(h)-1].Content)
	}}
	svc := New(createTestStore(t), inv, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
	require.NoError(t, err)

	questions := []string{"q1", "q2", "q3"}
	for _, q := range questions {
		_, err := svc.AddMessage(ctx, "key-a", conv.ID, q)
		require.NoError(t, err)
	}

	want := []agent.Turn{
		{Role: agent.RoleUser, Content: "q1"},
		{Role: agent.RoleAssistant, Content: "answer q1"},
		{Role: agent.RoleUser, Content: "q2"},
		{Role: agent.RoleAssistant, Content: "answer q2"},
		{Role: agent.RoleUser, Content: "q3"},
	}
	assert.Equal(t, want, inv.last())
	assert.Equal(t, 3, inv.callCount())
}

func TestService_AddMessage_NotFoundRegardlessOfBody(t *testing.T) {
	ms := store.NewMockStore()
	inv := &recordingInvoker{}
	svc := New(ms, inv, nil)
	ctx := context.Background()

	other, err := svc.CreateConversation(ctx, "key-b", CreateParams{})
	require.NoError(t, err)

	for _, body := range []string{"", "   ", "hello"} {
		_, err := svc.AddMessage(ctx, "key-a", "no-such-id", body)
		assert.ErrorIs(t, err, ErrNotFound, "body %q", body)

		// Someone else's conversation looks the same as a missing one.
		_, err = svc.AddMessage(ctx, "key-a", other.ID, body)
		assert.ErrorIs(t, err, ErrNotFound, "body %q", body)
	}

	assert.Equal(t, 0, ms.MessageCount())
	assert.Equal(t, 0, inv.callCount())
}

func TestService_AddMessage_EmptyBodyPersistsNothing(t *testing.T) {
	ms := store.NewMockStore()
	inv := &recordingInvoker{}
	svc := New(ms, inv, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
	require.NoError(t, err)

	for _, body := range []string{"", " ", "\n\t  \r\n"} {
		_, err := svc.AddMessage(ctx, "key-a", conv.ID, body)
		require.ErrorIs(t, err, ErrValidation)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)
	}

	assert.Equal(t, 0, ms.MessageCount())
	assert.Equal(t, 0, inv.callCount())
}

func TestService_AddMessage_AgentUnavailableKeepsUserMessage(t *testing.T) {
	testStore := createTestStore(t)
	svc := New(testStore, agent.Unconfigured{}, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{Topic: "Offline"})
	require.NoError(t, err)

	_, err = svc.AddMessage(ctx, "key-a", conv.ID, "anyone there?")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, agent.ErrUnavailable)

	list, err := svc.ListConversations(ctx, "key-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)

	history, err := svc.History(ctx, "key-a", conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, "anyone there?", history[0].Body)
}

func TestService_AddMessage_AgentFailureKinds(t *testing.T) {
	kinds := []agent.Kind{agent.KindNotConfigured, agent.KindUpstream, agent.KindEmptyReply}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ms := store.NewMockStore()
			inv := &recordingInvoker{reply: func([]agent.Turn) agent.Result {
				return agent.Fail(kind, errors.New("boom"))
			}}
			svc := New(ms, inv, nil)
			ctx := context.Background()

			conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
			require.NoError(t, err)

			_, err = svc.AddMessage(ctx, "key-a", conv.ID, "hi")
			require.ErrorIs(t, err, ErrServiceUnavailable)

			var agentErr *agent.Error
			require.ErrorAs(t, err, &agentErr)
			assert.Equal(t, kind, agentErr.Kind)
			assert.Equal(t, 1, ms.MessageCount())
			assert.Equal(t, 1, inv.callCount(), "single invocation, no retry")
		})
	}
}

func TestService_AddMessage_RetryAfterFailureSeesEarlierMessage(t *testing.T) {
	fail := true
	inv := &recordingInvoker{reply: func([]agent.Turn) agent.Result {
		if fail {
			return agent.Fail(agent.KindUpstream, nil)
		}
		return agent.Ok("back online")
	}}
	svc := New(store.NewMockStore(), inv, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
	require.NoError(t, err)

	_, err = svc.AddMessage(ctx, "key-a", conv.ID, "first")
	require.ErrorIs(t, err, ErrServiceUnavailable)

	fail = false
	reply, err := svc.AddMessage(ctx, "key-a", conv.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, 3, reply.Ordinal)
	assert.Equal(t, []agent.Turn{
		{Role: agent.RoleUser, Content: "first"},
		{Role: agent.RoleUser, Content: "second"},
	}, inv.last())
}

func TestService_AddMessage_StoreErrors(t *testing.T) {
	ms := store.NewMockStore()
	svc := New(ms, &recordingInvoker{}, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	ms.AppendErr = map[store.Role]error{store.RoleAssistant: diskFull}

	_, err = svc.AddMessage(ctx, "key-a", conv.ID, "hello")
	require.ErrorIs(t, err, diskFull)
	assert.NotErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, 1, ms.MessageCount())
}

func TestService_AddMessage_ReplySurvivesCancelledRequest(t *testing.T) {
	ms := store.NewMockStore()
	ctx, cancel := context.WithCancel(context.Background())
	inv := &recordingInvoker{reply: func([]agent.Turn) agent.Result {
		cancel()
		return agent.Ok("still saved")
	}}
	svc := New(ms, inv, nil)

	conv, err := svc.CreateConversation(context.Background(), "key-a", CreateParams{})
	require.NoError(t, err)

	reply, err := svc.AddMessage(ctx, "key-a", conv.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "still saved", reply.Body)
	assert.Equal(t, 2, ms.MessageCount())
}

func TestService_History(t *testing.T) {
	svc := New(store.NewMockStore(), &recordingInvoker{}, nil)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "key-a", CreateParams{})
	require.NoError(t, err)

	empty, err := svc.History(ctx, "key-a", conv.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.AddMessage(ctx, "key-a", conv.ID, "hi")
	require.NoError(t, err)

	history, err := svc.History(ctx, "key-a", conv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.History(ctx, "key-b", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Ask(t *testing.T) {
	inv := &recordingInvoker{reply: func(h []agent.Turn) agent.Result { return agent.Ok("Creepers hate cats.") }}
	ms := store.NewMockStore()
	svc := New(ms, inv, nil)
	ctx := context.Background()

	reply, err := svc.Ask(ctx, "How do I scare creepers?")
	require.NoError(t, err)
	assert.Equal(t, "Creepers hate cats.", reply)
	assert.Equal(t, []agent.Turn{{Role: agent.RoleUser, Content: "How do I scare creepers?"}}, inv.last())
	assert.Equal(t, 0, ms.MessageCount())

	_, err = svc.Ask(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	unavailable := New(ms, nil, nil)
	_, err = unavailable.Ask(ctx, "hi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, unavailable.AgentConfigured())
	assert.True(t, svc.AgentConfigured())
}
