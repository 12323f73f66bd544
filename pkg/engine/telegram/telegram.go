// Package telegram is an engine.Engine backed by the Telegram Bot API.
//
// The authorization states of a full protocol engine are emulated: the bot
// token check creates the telego client and confirms it with getMe, after
// which long polling feeds messages, edits and callback queries into the
// handle's queue. Requests run on their own goroutines, so answers may arrive
// in any order.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/ratelimit"
	"github.com/sipeed/picotd/pkg/td"
)

const (
	defaultQueueCapacity   = 4096
	defaultLongPollTimeout = 30
)

var allowedUpdates = []string{"message", "edited_message", "callback_query"}

type Options struct {
	// Token is used when CheckAuthenticationBotToken carries none.
	Token     string
	Proxy     string
	APIServer string

	LongPollTimeout int
	QueueCapacity   int
	RateLimit       ratelimit.Config

	// BotOptions are appended last; tests use them to swap the API caller.
	BotOptions []telego.BotOption
}

type Engine struct {
	opts     Options
	serial   atomix.Uint32
	mu       sync.RWMutex
	sessions map[engine.Handle]*session
}

type session struct {
	handle   engine.Handle
	queue    *engine.Queue
	ctx      context.Context
	cancel   context.CancelFunc
	limiter  *ratelimit.Limiter
	inflight sync.WaitGroup
	tempID   atomic.Int64

	mu      sync.Mutex
	bot     *telego.Bot
	me      *td.User
	polling bool
	closed  bool
}

var _ engine.Engine = (*Engine)(nil)

func New(opts Options) *Engine {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	if opts.LongPollTimeout <= 0 {
		opts.LongPollTimeout = defaultLongPollTimeout
	}
	return &Engine{
		opts:     opts,
		sessions: make(map[engine.Handle]*session),
	}
}

func (e *Engine) CreateClient() (engine.Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		handle:  engine.Handle(e.serial.Add(1)),
		queue:   engine.NewQueue(e.opts.QueueCapacity),
		ctx:     ctx,
		cancel:  cancel,
		limiter: ratelimit.NewLimiter(e.opts.RateLimit),
	}

	e.mu.Lock()
	e.sessions[s.handle] = s
	e.mu.Unlock()

	s.pushState(&td.AuthorizationStateWaitTdlibParameters{})
	logger.DebugCF("telegram", "Client created", map[string]any{"handle": s.handle})
	return s.handle, nil
}

// DestroyClient stops polling and waits for in-flight requests.
func (e *Engine) DestroyClient(h engine.Handle) {
	e.mu.Lock()
	s := e.sessions[h]
	delete(e.sessions, h)
	e.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	s.inflight.Wait()
	logger.DebugCF("telegram", "Client destroyed", map[string]any{"handle": h})
}

func (e *Engine) session(h engine.Handle) *session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[h]
}

func (e *Engine) Submit(h engine.Handle, requestID int64, req td.Function) {
	s := e.session(h)
	if s == nil {
		return
	}
	if requestID == 0 {
		logger.WarnCF("telegram", "Request submitted without id", map[string]any{"type": req.Type()})
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		e.answer(s, requestID, req)
	}()
}

func (e *Engine) Drain(h engine.Handle, max int, timeout time.Duration) []engine.Envelope {
	s := e.session(h)
	if s == nil {
		return nil
	}
	return s.queue.Drain(max, timeout)
}

func (e *Engine) newBot(token string) (*telego.Bot, error) {
	var opts []telego.BotOption
	if e.opts.Proxy != "" {
		proxyURL, err := url.Parse(e.opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", e.opts.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}
	if e.opts.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(e.opts.APIServer))
	}
	opts = append(opts, telego.WithDiscardLogger())
	opts = append(opts, e.opts.BotOptions...)
	return telego.NewBot(token, opts...)
}

func (e *Engine) answer(s *session, id int64, req td.Function) {
	reply := func(obj td.Object) { s.queue.MustPush("telegram", engine.Envelope{RequestID: id, Payload: obj}) }

	switch r := req.(type) {
	case *td.SetTdlibParameters:
		reply(&td.Ok{})
		s.pushState(&td.AuthorizationStateWaitEncryptionKey{})

	case *td.CheckDatabaseEncryptionKey:
		reply(&td.Ok{})
		s.pushState(&td.AuthorizationStateWaitPhoneNumber{})

	case *td.CheckAuthenticationBotToken:
		e.authorize(s, r.Token, reply)

	case *td.Close:
		reply(&td.Ok{})
		s.close()

	default:
		bot, me := s.authorized()
		if bot == nil {
			reply(td.NewError(401, "UNAUTHORIZED"))
			return
		}
		if r, ok := req.(*td.SendMessage); ok {
			e.sendMessage(s, id, bot, me, r)
			return
		}
		obj, err := e.call(s, bot, me, req)
		if err != nil {
			reply(toError(err))
			return
		}
		reply(obj)
	}
}

func (e *Engine) authorize(s *session, token string, reply func(td.Object)) {
	if token == "" {
		token = e.opts.Token
	}
	bot, err := e.newBot(token)
	if err != nil {
		reply(td.NewError(401, "ACCESS_TOKEN_INVALID: %v", err))
		return
	}
	u, err := bot.GetMe(s.ctx)
	if err != nil {
		logger.ErrorCF("telegram", "getMe failed", map[string]any{"error": err.Error()})
		reply(td.NewError(401, "ACCESS_TOKEN_INVALID: %s", toError(err).Message))
		return
	}

	s.mu.Lock()
	s.bot = bot
	s.me = toUser(u)
	s.mu.Unlock()

	reply(&td.Ok{})
	s.pushState(&td.AuthorizationStateReady{})
	if err := e.startPolling(s, bot); err != nil {
		logger.ErrorCF("telegram", "Failed to start long polling", map[string]any{"error": err.Error()})
		s.push(&td.UpdateConnectionState{State: td.ConnectionStateWaitingForNetwork})
	}
}

func (s *session) authorized() (*telego.Bot, *td.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil
	}
	return s.bot, s.me
}

func (e *Engine) startPolling(s *session, bot *telego.Bot) error {
	s.mu.Lock()
	if s.polling || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.polling = true
	s.mu.Unlock()

	updates, err := bot.UpdatesViaLongPolling(s.ctx, &telego.GetUpdatesParams{
		Timeout:        e.opts.LongPollTimeout,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	s.push(&td.UpdateConnectionState{State: td.ConnectionStateReady})
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": bot.Username(),
		"handle":   s.handle,
	})

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				if up := toUpdate(u); up != nil {
					s.push(up)
				}
			}
		}
	}()
	return nil
}

// close ends polling and reports the session closed exactly once.
func (s *session) close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return
	}
	s.cancel()
	s.pushState(&td.AuthorizationStateClosing{}, &td.AuthorizationStateClosed{})
}

func (s *session) push(up td.Update) {
	s.queue.MustPush("telegram", engine.Envelope{Payload: up})
}

func (s *session) pushState(states ...td.AuthorizationState) {
	for _, st := range states {
		s.push(&td.UpdateAuthorizationState{State: st})
	}
}

// call performs an authorized request other than SendMessage.
func (e *Engine) call(s *session, bot *telego.Bot, me *td.User, req td.Function) (td.Object, error) {
	ctx := s.ctx

	switch r := req.(type) {
	case *td.GetMe:
		u := *me
		return &u, nil

	case *td.EditMessageText:
		if err := s.limiter.Wait(ctx, r.ChatID); err != nil {
			return nil, err
		}
		params := tu.EditMessageText(tu.ID(r.ChatID), int(r.MessageID), r.Text)
		markup, err := toKeyboard(r.ReplyMarkup)
		if err != nil {
			return nil, err
		}
		params.ReplyMarkup = markup
		m, err := bot.EditMessageText(ctx, params)
		if err != nil {
			return nil, err
		}
		return toMessage(m), nil

	case *td.DeleteMessages:
		if err := s.limiter.Wait(ctx, r.ChatID); err != nil {
			return nil, err
		}
		ids := make([]int, len(r.MessageIDs))
		for i, id := range r.MessageIDs {
			ids[i] = int(id)
		}
		if err := bot.DeleteMessages(ctx, &telego.DeleteMessagesParams{
			ChatID:     tu.ID(r.ChatID),
			MessageIDs: ids,
		}); err != nil {
			return nil, err
		}
		s.push(&td.UpdateDeleteMessages{ChatID: r.ChatID, MessageIDs: r.MessageIDs})
		return &td.Ok{}, nil

	case *td.AnswerCallbackQuery:
		if err := s.limiter.Wait(ctx, 0); err != nil {
			return nil, err
		}
		if err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
			CallbackQueryID: r.CallbackQueryID,
			Text:            r.Text,
			ShowAlert:       r.ShowAlert,
		}); err != nil {
			return nil, err
		}
		return &td.Ok{}, nil

	case *td.SetCommands:
		if err := s.limiter.Wait(ctx, 0); err != nil {
			return nil, err
		}
		if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands: toBotCommands(r.Commands),
		}); err != nil {
			return nil, err
		}
		return &td.Ok{}, nil

	case *td.LogOut:
		if err := bot.LogOut(ctx); err != nil {
			return nil, err
		}
		s.pushState(&td.AuthorizationStateLoggingOut{})
		s.close()
		return &td.Ok{}, nil

	default:
		return nil, td.NewError(400, "method %s is not supported", req.Type())
	}
}

// sendMessage answers with a temporary message at once and reports the real
// one through UpdateMessageSendSucceeded or UpdateMessageSendFailed.
func (e *Engine) sendMessage(s *session, id int64, bot *telego.Bot, me *td.User, r *td.SendMessage) {
	reply := func(obj td.Object) { s.queue.MustPush("telegram", engine.Envelope{RequestID: id, Payload: obj}) }

	markup, err := toKeyboard(r.ReplyMarkup)
	if err != nil {
		reply(toError(err))
		return
	}

	tempID := -s.tempID.Add(1)
	msg := &td.Message{
		ID:               tempID,
		ChatID:           r.ChatID,
		SenderUserID:     me.ID,
		Date:             time.Now().Unix(),
		ReplyToMessageID: r.ReplyToMessageID,
		Content:          &td.MessageText{Text: r.Text},
		SendingState:     td.MessageSendingPending,
	}
	temp := *msg
	reply(&temp)
	s.push(&td.UpdateMessageSendAcknowledged{ChatID: r.ChatID, MessageID: tempID})

	sent, err := e.deliver(s, bot, r, markup)
	if err != nil {
		msg.SendingState = td.MessageSendingFailed
		s.push(&td.UpdateMessageSendFailed{Message: msg, OldMessageID: tempID, Error: toError(err)})
		return
	}
	final := toMessage(sent)
	if final.SenderUserID == 0 {
		final.SenderUserID = me.ID
	}
	s.push(&td.UpdateMessageSendSucceeded{Message: final, OldMessageID: tempID})
}

func (e *Engine) deliver(s *session, bot *telego.Bot, r *td.SendMessage, markup *telego.InlineKeyboardMarkup) (*telego.Message, error) {
	if err := s.limiter.Wait(s.ctx, r.ChatID); err != nil {
		return nil, err
	}
	params := tu.Message(tu.ID(r.ChatID), r.Text)
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if r.ReplyToMessageID != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                int(r.ReplyToMessageID),
			AllowSendingWithoutReply: true,
		}
	}
	return bot.SendMessage(s.ctx, params)
}
