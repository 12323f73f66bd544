package loopback

import (
	"sort"

	"github.com/sipeed/picotd/pkg/engine"
	"github.com/sipeed/picotd/pkg/td"
)

// Inject pushes an update onto h's queue as if the engine had produced it.
func (e *Engine) Inject(h engine.Handle, update td.Update) error {
	s := e.session(h)
	if s == nil {
		return engine.ErrUnknownHandle
	}
	s.push(engine.Envelope{Payload: update})
	return nil
}

// InjectText injects an incoming text message and returns it.
func (e *Engine) InjectText(h engine.Handle, chatID, senderID int64, text string) (*td.Message, error) {
	s := e.session(h)
	if s == nil {
		return nil, engine.ErrUnknownHandle
	}
	s.mu.Lock()
	s.messageID++
	id := s.messageID
	s.mu.Unlock()

	msg := &td.Message{
		ID:           id,
		ChatID:       chatID,
		SenderUserID: senderID,
		Content:      &td.MessageText{Text: text},
	}
	s.push(engine.Envelope{Payload: &td.UpdateNewMessage{Message: msg}})
	return msg, nil
}

// Hold makes Submit keep every request for which match returns true instead
// of answering it. Held requests are answered with Respond or Release.
// A nil match stops holding.
func (e *Engine) Hold(h engine.Handle, match func(td.Function) bool) {
	if s := e.session(h); s != nil {
		s.mu.Lock()
		s.hold = match
		s.mu.Unlock()
	}
}

// Held returns the ids of held requests in ascending order.
func (e *Engine) Held(h engine.Handle) []int64 {
	s := e.session(h)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	ids := make([]int64, 0, len(s.held))
	for id := range s.held {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Respond answers a held request with obj.
func (e *Engine) Respond(h engine.Handle, requestID int64, obj td.Object) error {
	s := e.session(h)
	if s == nil {
		return engine.ErrUnknownHandle
	}
	s.mu.Lock()
	_, ok := s.held[requestID]
	delete(s.held, requestID)
	s.mu.Unlock()
	if !ok {
		return engine.ErrUnknownHandle
	}
	s.push(engine.Envelope{RequestID: requestID, Payload: obj})
	return nil
}

// Release answers a held request the way the engine normally would.
func (e *Engine) Release(h engine.Handle, requestID int64) error {
	s := e.session(h)
	if s == nil {
		return engine.ErrUnknownHandle
	}
	s.mu.Lock()
	req, ok := s.held[requestID]
	delete(s.held, requestID)
	s.mu.Unlock()
	if !ok {
		return engine.ErrUnknownHandle
	}
	e.answer(s, requestID, req)
	return nil
}

// Sent returns a copy of the SendMessage requests seen on h.
func (e *Engine) Sent(h engine.Handle) []*td.SendMessage {
	s := e.session(h)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*td.SendMessage(nil), s.sent...)
}

// Answers returns a copy of the callback answers seen on h.
func (e *Engine) Answers(h engine.Handle) []*td.AnswerCallbackQuery {
	s := e.session(h)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*td.AnswerCallbackQuery(nil), s.answers...)
}

// Commands returns the command menu last published on h.
func (e *Engine) Commands(h engine.Handle) []td.BotCommand {
	s := e.session(h)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]td.BotCommand(nil), s.commands...)
}
