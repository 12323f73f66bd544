package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotd/pkg/bot"
	"github.com/sipeed/picotd/pkg/client"
	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/engine/loopback"
	"github.com/sipeed/picotd/pkg/td"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
	user    = int64(7)
	chat    = int64(700)
)

type harness struct {
	t      *testing.T
	eng    *loopback.Engine
	h      engine.Handle
	router *bot.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	eng := loopback.New(loopback.Options{})
	p := client.NewPoller(eng, client.PollerConfig{IdleInterval: tick, Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	r, err := NewRouter(bot.Config{})
	require.NoError(t, err)

	c := client.New(p, client.Options{BotToken: "token"})
	c.AddHandler(r)
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return c.Me() != nil }, waitFor, tick)

	return &harness{t: t, eng: eng, h: c.Handle(), router: r}
}

func (h *harness) say(text string) {
	h.t.Helper()
	_, err := h.eng.InjectText(h.h, chat, user, text)
	require.NoError(h.t, err)
}

// waitReply waits for the n-th outgoing message (1-based) and returns it.
func (h *harness) waitReply(n int) *td.SendMessage {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.eng.Sent(h.h)) >= n }, waitFor, tick)
	return h.eng.Sent(h.h)[n-1]
}

func (h *harness) press(id string, data []byte) {
	h.t.Helper()
	require.NoError(h.t, h.eng.Inject(h.h, &td.UpdateNewCallbackQuery{
		ID:           id,
		SenderUserID: user,
		ChatID:       chat,
		Payload:      data,
	}))
}

func (h *harness) waitAnswer(n int) *td.AnswerCallbackQuery {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return len(h.eng.Answers(h.h)) >= n }, waitFor, tick)
	return h.eng.Answers(h.h)[n-1]
}

func TestHelpListsMenu(t *testing.T) {
	h := newHarness(t)

	h.say("/help")
	reply := h.waitReply(1)
	assert.Equal(t, chat, reply.ChatID)
	assert.Equal(t, "Available commands:\n"+
		"/help - Show available commands\n"+
		"/echo - Repeat what you say\n"+
		"/survey - Answer a two-question survey", reply.Text)

	h.say("/h")
	assert.Equal(t, reply.Text, h.waitReply(2).Text)
}

func TestEcho(t *testing.T) {
	h := newHarness(t)

	h.say("/echo hello there")
	assert.Equal(t, "hello there", h.waitReply(1).Text)

	h.say("/echo")
	assert.Equal(t, "Usage: /echo <text>", h.waitReply(2).Text)
}

func TestSurveyFlow(t *testing.T) {
	h := newHarness(t)

	h.say("/survey")
	assert.Equal(t, "What is your name? Send /cancel to stop.", h.waitReply(1).Text)

	h.say("Ada")
	ask := h.waitReply(2)
	assert.Equal(t, "Nice to meet you, Ada. Pick a color:", ask.Text)
	require.NotNil(t, ask.ReplyMarkup)
	require.Len(t, ask.ReplyMarkup.Rows, 1)
	require.Len(t, ask.ReplyMarkup.Rows[0], 3)

	h.say("purple")
	assert.Equal(t, "Please tap one of the buttons.", h.waitReply(3).Text)

	green := ask.ReplyMarkup.Rows[0][1]
	assert.Equal(t, "green", green.Text)
	h.press("q1", green.Data)

	answer := h.waitAnswer(1)
	assert.Equal(t, "q1", answer.CallbackQueryID)
	assert.Equal(t, "Thanks!", answer.Text)
	assert.Equal(t, "Thanks Ada, you picked green.", h.waitReply(4).Text)
	assert.Nil(t, h.router.Persist(user))

	h.press("q2", green.Data)
	assert.Equal(t, "This survey has expired.", h.waitAnswer(2).Text)
}

func TestSurveyCancel(t *testing.T) {
	h := newHarness(t)

	h.say("/survey")
	h.waitReply(1)
	require.NotNil(t, h.router.Persist(user))

	h.say("/cancel")
	assert.Equal(t, "Cancelled.", h.waitReply(2).Text)
	assert.Nil(t, h.router.Persist(user))

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.eng.Sent(h.h), 2)
}

func TestSurveyEndsOnOtherCommand(t *testing.T) {
	h := newHarness(t)

	h.say("/survey")
	h.waitReply(1)
	h.say("Ada")
	h.waitReply(2)

	h.say("/echo hi")
	assert.Equal(t, "Cancelled.", h.waitReply(3).Text)
	assert.Nil(t, h.router.Persist(user))

	h.say("/echo hi")
	assert.Equal(t, "hi", h.waitReply(4).Text)
}

func TestSurveyTimeout(t *testing.T) {
	h := newHarness(t)

	h.say("/survey")
	h.waitReply(1)

	assert.Equal(t, 1, h.router.ExpirePersists(context.Background(), time.Now().Add(time.Second)))
	assert.Equal(t, "Your survey timed out.", h.waitReply(2).Text)
	assert.Nil(t, h.router.Persist(user))
}

func TestStartLinks(t *testing.T) {
	h := newHarness(t)

	h.say("/start")
	assert.Equal(t, "Hi! Send /help to see what I can do.", h.waitReply(1).Text)

	h.say("/start ref-abc")
	assert.Equal(t, "Welcome! You were invited with code abc.", h.waitReply(2).Text)

	h.say("/start promo-x")
	assert.Equal(t, `Unknown link "promo".`, h.waitReply(3).Text)

	time.Sleep(20 * time.Millisecond)
	texts := make([]string, 0, 3)
	for _, m := range h.eng.Sent(h.h) {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{
		"Hi! Send /help to see what I can do.",
		"Welcome! You were invited with code abc.",
		`Unknown link "promo".`,
	}, texts)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)

	h.say("/dance")
	assert.Equal(t, "Unknown command /dance. Send /help for the list.", h.waitReply(1).Text)
}
