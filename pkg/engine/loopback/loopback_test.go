package loopback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/td"
)

func drainOne(t *testing.T, e *Engine, h engine.Handle) engine.Envelope {
	t.Helper()
	envs := e.Drain(h, 1, time.Second)
	require.Len(t, envs, 1)
	return envs[0]
}

func authState(t *testing.T, env engine.Envelope) td.AuthorizationState {
	t.Helper()
	require.True(t, env.IsUpdate())
	u, ok := env.Payload.(*td.UpdateAuthorizationState)
	require.True(t, ok, "got %T", env.Payload)
	return u.State
}

func TestAuthorizationFlow(t *testing.T) {
	e := New(Options{BotToken: "good"})
	h, err := e.CreateClient()
	require.NoError(t, err)

	assert.IsType(t, &td.AuthorizationStateWaitTdlibParameters{}, authState(t, drainOne(t, e, h)))

	e.Submit(h, 1, &td.SetTdlibParameters{})
	assert.Equal(t, int64(1), drainOne(t, e, h).RequestID)
	assert.IsType(t, &td.AuthorizationStateWaitEncryptionKey{}, authState(t, drainOne(t, e, h)))

	e.Submit(h, 2, &td.CheckDatabaseEncryptionKey{})
	drainOne(t, e, h)
	assert.IsType(t, &td.AuthorizationStateWaitPhoneNumber{}, authState(t, drainOne(t, e, h)))

	e.Submit(h, 3, &td.CheckAuthenticationBotToken{Token: "bad"})
	env := drainOne(t, e, h)
	require.IsType(t, &td.Error{}, env.Payload)
	assert.Equal(t, 401, env.Payload.(*td.Error).Code)

	e.Submit(h, 4, &td.CheckAuthenticationBotToken{Token: "good"})
	assert.IsType(t, &td.Ok{}, drainOne(t, e, h).Payload)
	assert.IsType(t, &td.AuthorizationStateReady{}, authState(t, drainOne(t, e, h)))

	e.Submit(h, 5, &td.GetMe{})
	me, ok := drainOne(t, e, h).Payload.(*td.User)
	require.True(t, ok)
	assert.Equal(t, "loopback_bot", me.Username)
}

func TestSendMessageTemporaryThenSucceeded(t *testing.T) {
	e := New(Options{})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)

	e.Submit(h, 7, &td.SendMessage{ChatID: 42, Text: "hi"})
	envs := e.Drain(h, 10, time.Second)
	require.Len(t, envs, 3)

	temp := envs[0].Payload.(*td.Message)
	assert.Equal(t, int64(7), envs[0].RequestID)
	assert.Equal(t, td.MessageSendingPending, temp.SendingState)
	assert.Less(t, temp.ID, int64(0))

	assert.IsType(t, &td.UpdateMessageSendAcknowledged{}, envs[1].Payload)

	ok := envs[2].Payload.(*td.UpdateMessageSendSucceeded)
	assert.Equal(t, temp.ID, ok.OldMessageID)
	assert.Equal(t, -temp.ID, ok.Message.ID)
	assert.Equal(t, "hi", ok.Message.Text())

	require.Len(t, e.Sent(h), 1)
	assert.Equal(t, int64(42), e.Sent(h)[0].ChatID)
}

func TestSendMessageFailure(t *testing.T) {
	e := New(Options{SendFailure: func(*td.SendMessage) *td.Error { return td.NewError(403, "blocked") }})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)

	e.Submit(h, 1, &td.SendMessage{ChatID: 1, Text: "x"})
	envs := e.Drain(h, 10, time.Second)
	require.Len(t, envs, 3)
	failed, ok := envs[2].Payload.(*td.UpdateMessageSendFailed)
	require.True(t, ok)
	assert.Equal(t, 403, failed.Error.Code)
}

func TestHoldAndRespondOutOfOrder(t *testing.T) {
	e := New(Options{})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)

	e.Hold(h, func(td.Function) bool { return true })
	e.Submit(h, 1, &td.GetMe{})
	e.Submit(h, 2, &td.GetMe{})
	assert.Equal(t, []int64{1, 2}, e.Held(h))
	assert.Empty(t, e.Drain(h, 10, 10*time.Millisecond))

	require.NoError(t, e.Respond(h, 2, td.NewError(500, "later")))
	require.NoError(t, e.Release(h, 1))

	envs := e.Drain(h, 10, time.Second)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(2), envs[0].RequestID)
	assert.Equal(t, int64(1), envs[1].RequestID)
	assert.Error(t, e.Respond(h, 1, &td.Ok{}))
}

func TestCloseAndDestroy(t *testing.T) {
	e := New(Options{})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)

	e.Submit(h, 1, &td.Close{})
	envs := e.Drain(h, 10, time.Second)
	require.Len(t, envs, 3)
	assert.IsType(t, &td.AuthorizationStateClosed{}, envs[2].Payload.(*td.UpdateAuthorizationState).State)

	e.DestroyClient(h)
	assert.False(t, e.Exists(h))
	assert.Nil(t, e.Drain(h, 10, 0))
	assert.ErrorIs(t, e.Inject(h, &td.UpdateOption{Name: "x"}), engine.ErrUnknownHandle)
}

func TestDrainRespectsMax(t *testing.T) {
	e := New(Options{QueueCapacity: 8})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)
	for i := 0; i < 5; i++ {
		_, err := e.InjectText(h, 1, 2, "m")
		require.NoError(t, err)
	}
	assert.Len(t, e.Drain(h, 3, 0), 3)
	assert.Len(t, e.Drain(h, 3, 0), 2)
}

func TestDeleteMessagesPushesUpdate(t *testing.T) {
	e := New(Options{})
	h, _ := e.CreateClient()
	e.Drain(h, 10, 0)

	e.Submit(h, 9, &td.DeleteMessages{ChatID: 1, MessageIDs: []int64{3}})
	envs := e.Drain(h, 10, time.Second)
	require.Len(t, envs, 2)
	assert.IsType(t, &td.Ok{}, envs[0].Payload)
	assert.IsType(t, &td.UpdateDeleteMessages{}, envs[1].Payload)
}
