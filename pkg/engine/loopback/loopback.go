// Package loopback is an in-memory engine.Engine.
//
// It answers the authorization flow and the handful of requests a bot issues
// without any network, which makes it the engine behind the client and router
// tests and the `picotd simulate` command. Each handle owns an engine.Queue
// and the poller is its single consumer.
package loopback

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

const defaultQueueCapacity = 4096

type Options struct {
	// Me is returned by GetMe. Defaults to a bot named "loopback_bot".
	Me *td.User

	// BotToken, when set, is the only token CheckAuthenticationBotToken accepts.
	BotToken string

	// SendFailure, when set, decides whether a SendMessage fails after its
	// temporary message was returned.
	SendFailure func(req *td.SendMessage) *td.Error

	QueueCapacity int
}

type Engine struct {
	opts     Options
	serial   atomix.Uint32
	mu       sync.RWMutex
	sessions map[engine.Handle]*session
}

type session struct {
	handle engine.Handle
	queue  *engine.Queue

	mu        sync.Mutex
	hold      func(td.Function) bool
	held      map[int64]td.Function
	sent      []*td.SendMessage
	answers   []*td.AnswerCallbackQuery
	commands  []td.BotCommand
	messageID int64
	closed    bool
}

var _ engine.Engine = (*Engine)(nil)

func New(opts Options) *Engine {
	if opts.Me == nil {
		opts.Me = &td.User{ID: 1000, FirstName: "Loopback", Username: "loopback_bot", IsBot: true}
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	return &Engine{
		opts:     opts,
		sessions: make(map[engine.Handle]*session),
	}
}

func (e *Engine) CreateClient() (engine.Handle, error) {
	s := &session{
		handle: engine.Handle(e.serial.Add(1)),
		queue:  engine.NewQueue(e.opts.QueueCapacity),
		held:   make(map[int64]td.Function),
	}

	e.mu.Lock()
	e.sessions[s.handle] = s
	e.mu.Unlock()

	s.push(engine.Envelope{Payload: &td.UpdateAuthorizationState{State: &td.AuthorizationStateWaitTdlibParameters{}}})
	logger.DebugCF("loopback", "Client created", map[string]any{"handle": s.handle})
	return s.handle, nil
}

func (e *Engine) DestroyClient(h engine.Handle) {
	e.mu.Lock()
	delete(e.sessions, h)
	e.mu.Unlock()
	logger.DebugCF("loopback", "Client destroyed", map[string]any{"handle": h})
}

func (e *Engine) session(h engine.Handle) *session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[h]
}

// Exists reports whether h has not been destroyed.
func (e *Engine) Exists(h engine.Handle) bool {
	return e.session(h) != nil
}

func (e *Engine) Submit(h engine.Handle, requestID int64, req td.Function) {
	s := e.session(h)
	if s == nil {
		return
	}
	if requestID == 0 {
		logger.WarnCF("loopback", "Request submitted without id", map[string]any{"type": req.Type()})
		return
	}

	s.mu.Lock()
	if s.hold != nil && s.hold(req) {
		s.held[requestID] = req
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	e.answer(s, requestID, req)
}

func (e *Engine) Drain(h engine.Handle, max int, timeout time.Duration) []engine.Envelope {
	s := e.session(h)
	if s == nil {
		return nil
	}
	return s.queue.Drain(max, timeout)
}

func (e *Engine) answer(s *session, id int64, req td.Function) {
	reply := func(obj td.Object) { s.push(engine.Envelope{RequestID: id, Payload: obj}) }
	pushState := func(states ...td.AuthorizationState) {
		for _, st := range states {
			s.push(engine.Envelope{Payload: &td.UpdateAuthorizationState{State: st}})
		}
	}

	switch r := req.(type) {
	case *td.SetTdlibParameters:
		reply(&td.Ok{})
		pushState(&td.AuthorizationStateWaitEncryptionKey{})

	case *td.CheckDatabaseEncryptionKey:
		reply(&td.Ok{})
		pushState(&td.AuthorizationStateWaitPhoneNumber{})

	case *td.CheckAuthenticationBotToken:
		if e.opts.BotToken != "" && r.Token != e.opts.BotToken {
			reply(td.NewError(401, "ACCESS_TOKEN_INVALID"))
			return
		}
		reply(&td.Ok{})
		pushState(&td.AuthorizationStateReady{})

	case *td.GetMe:
		me := *e.opts.Me
		reply(&me)

	case *td.SendMessage:
		s.mu.Lock()
		s.sent = append(s.sent, r)
		s.messageID++
		final := s.messageID
		s.mu.Unlock()

		msg := &td.Message{
			ID:               -final,
			ChatID:           r.ChatID,
			SenderUserID:     e.opts.Me.ID,
			Date:             time.Now().Unix(),
			ReplyToMessageID: r.ReplyToMessageID,
			Content:          &td.MessageText{Text: r.Text},
			SendingState:     td.MessageSendingPending,
		}
		temp := *msg
		reply(&temp)
		s.push(engine.Envelope{Payload: &td.UpdateMessageSendAcknowledged{ChatID: r.ChatID, MessageID: -final}})

		var failure *td.Error
		if e.opts.SendFailure != nil {
			failure = e.opts.SendFailure(r)
		}
		if failure != nil {
			msg.SendingState = td.MessageSendingFailed
			s.push(engine.Envelope{Payload: &td.UpdateMessageSendFailed{Message: msg, OldMessageID: -final, Error: failure}})
			return
		}
		msg.ID = final
		msg.SendingState = 0
		s.push(engine.Envelope{Payload: &td.UpdateMessageSendSucceeded{Message: msg, OldMessageID: -final}})

	case *td.EditMessageText:
		reply(&td.Message{
			ID:           r.MessageID,
			ChatID:       r.ChatID,
			SenderUserID: e.opts.Me.ID,
			Date:         time.Now().Unix(),
			Content:      &td.MessageText{Text: r.Text},
		})

	case *td.DeleteMessages:
		reply(&td.Ok{})
		s.push(engine.Envelope{Payload: &td.UpdateDeleteMessages{ChatID: r.ChatID, MessageIDs: r.MessageIDs}})

	case *td.AnswerCallbackQuery:
		s.mu.Lock()
		s.answers = append(s.answers, r)
		s.mu.Unlock()
		reply(&td.Ok{})

	case *td.SetCommands:
		s.mu.Lock()
		s.commands = append([]td.BotCommand(nil), r.Commands...)
		s.mu.Unlock()
		reply(&td.Ok{})

	case *td.LogOut:
		reply(&td.Ok{})
		pushState(&td.AuthorizationStateLoggingOut{}, &td.AuthorizationStateClosing{}, &td.AuthorizationStateClosed{})

	case *td.Close:
		s.mu.Lock()
		already := s.closed
		s.closed = true
		s.mu.Unlock()
		reply(&td.Ok{})
		if !already {
			pushState(&td.AuthorizationStateClosing{}, &td.AuthorizationStateClosed{})
		}

	default:
		reply(td.NewError(400, "method %s is not supported", req.Type()))
	}
}

func (s *session) push(env engine.Envelope) {
	s.queue.MustPush("loopback", env)
}
