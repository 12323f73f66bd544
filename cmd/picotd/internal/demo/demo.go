// Package demo is the sample bot served by `picotd run` and `picotd simulate`.
package demo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sipeed/picotd/pkg/bot"
	"github.com/sipeed/picotd/pkg/logger"
	"github.com/sipeed/picotd/pkg/td"
)

const (
	surveyPersistID  = 1
	surveyCallbackID = 1

	surveyAskName  = 0
	surveyAskColor = 1
)

var surveyColors = []string{"red", "green", "blue"}

// NewRouter builds a router hosting every demo feature.
func NewRouter(cfg bot.Config) (*bot.Router, error) {
	fb := &fallback{}
	r, err := bot.NewRouter(cfg, fb, &general{}, &survey{}, &referral{})
	if err != nil {
		return nil, err
	}
	fb.router = r
	return r, nil
}

type general struct {
	bot.BaseHandler
}

func (g *general) Functions() []bot.Definition {
	return []bot.Definition{
		{Name: "help", Description: "Show available commands", Aliases: []string{"h"}},
		{Name: "echo", Description: "Repeat what you say"},
	}
}

func (g *general) OnFunction(_ context.Context, ev *bot.Event, cmd *bot.Command) error {
	switch cmd.Name {
	case "help", "h":
		return g.Router().Reply(ev, helpText(g.Router().Menu()), nil)
	case "echo":
		if cmd.Params == "" {
			return g.Router().Reply(ev, "Usage: /echo <text>", nil)
		}
		return g.Router().Reply(ev, cmd.Params, nil)
	}
	return nil
}

func helpText(menu []bot.Definition) string {
	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, d := range menu {
		fmt.Fprintf(&sb, "\n/%s - %s", d.Name, d.Description)
	}
	return sb.String()
}

// survey asks for a name, then a color picked from inline buttons.
// Persist data: [chat id, name].
type survey struct {
	bot.BaseHandler
}

func (s *survey) Functions() []bot.Definition {
	return []bot.Definition{{Name: "survey", Description: "Answer a two-question survey"}}
}

func (s *survey) PersistIDs() []int  { return []int{surveyPersistID} }
func (s *survey) CallbackIDs() []int { return []int{surveyCallbackID} }

func (s *survey) OnFunction(ctx context.Context, ev *bot.Event, _ *bot.Command) error {
	err := s.Router().WritePersist(ctx, bot.Persist{
		UserID:      ev.SenderID,
		PersistID:   surveyPersistID,
		SubID:       surveyAskName,
		AllowCancel: true,
		Data:        []string{strconv.FormatInt(ev.ChatID, 10)},
	})
	if err != nil {
		return err
	}
	return s.Router().Reply(ev, "What is your name? Send /cancel to stop.", nil)
}

func (s *survey) OnPersistMessage(ctx context.Context, ev *bot.Event, rec *bot.Persist) error {
	// functions end the survey through the cancel hooks
	if ev.Command != nil {
		return nil
	}
	switch rec.SubID {
	case surveyAskName:
		name := strings.TrimSpace(ev.Text)
		if name == "" {
			return s.Router().Reply(ev, "Please send your name as text.", nil)
		}
		keyboard, err := colorKeyboard()
		if err != nil {
			return err
		}
		next := *rec
		next.SubID = surveyAskColor
		next.Data = []string{chatOf(rec, ev.ChatID), name}
		if err := s.Router().WritePersist(ctx, next); err != nil {
			return err
		}
		return s.Router().Reply(ev, fmt.Sprintf("Nice to meet you, %s. Pick a color:", name), keyboard)
	default:
		return s.Router().Reply(ev, "Please tap one of the buttons.", nil)
	}
}

func colorKeyboard() (*td.InlineKeyboard, error) {
	row := make([]td.InlineButton, 0, len(surveyColors))
	for _, c := range surveyColors {
		data, err := bot.EncodeData(surveyCallbackID, 0, []byte(c))
		if err != nil {
			return nil, err
		}
		row = append(row, td.InlineButton{Text: c, Data: data})
	}
	return &td.InlineKeyboard{Rows: [][]td.InlineButton{row}}, nil
}

func (s *survey) OnCallbackQuery(ctx context.Context, q *bot.CallbackQuery) error {
	r := s.Router()
	rec := r.Persist(q.Update.SenderUserID)
	if rec == nil || rec.PersistID != surveyPersistID || rec.SubID != surveyAskColor {
		return r.AnswerCallback(q.Update.ID, "This survey has expired.", false)
	}

	color := q.Data.String(0)
	if err := r.AnswerCallback(q.Update.ID, "Thanks!", false); err != nil {
		return err
	}
	r.RemovePersist(ctx, rec.UserID)
	return r.Send(chatID(rec), fmt.Sprintf("Thanks %s, you picked %s.", name(rec), color), nil)
}

func (s *survey) OnPersistTimeout(_ context.Context, rec *bot.Persist) error {
	return s.Router().Send(chatID(rec), "Your survey timed out.", nil)
}

func (s *survey) OnPersistRestore(_ context.Context, rec *bot.Persist) error {
	logger.InfoCF("demo", "Survey resumed", map[string]any{
		"user_id": rec.UserID,
		"step":    rec.SubID,
	})
	return nil
}

func chatOf(rec *bot.Persist, fallback int64) string {
	if len(rec.Data) > 0 && rec.Data[0] != "" {
		return rec.Data[0]
	}
	return strconv.FormatInt(fallback, 10)
}

// chatID falls back to the user id, which is the chat id of a private chat.
func chatID(rec *bot.Persist) int64 {
	if len(rec.Data) > 0 {
		if id, err := strconv.ParseInt(rec.Data[0], 10, 64); err == nil {
			return id
		}
	}
	return rec.UserID
}

func name(rec *bot.Persist) string {
	if len(rec.Data) > 1 {
		return rec.Data[1]
	}
	return "stranger"
}

// referral handles "/start ref-<code>" deep links.
type referral struct {
	bot.BaseHandler
}

func (f *referral) Payloads() []string { return []string{"ref"} }

func (f *referral) OnStartPayload(_ context.Context, ev *bot.Event, p *bot.Payload) error {
	if len(p.Args) == 0 {
		return f.Router().Reply(ev, "Welcome!", nil)
	}
	return f.Router().Reply(ev, fmt.Sprintf("Welcome! You were invited with code %s.", p.Args[0]), nil)
}

type fallback struct {
	router *bot.Router
}

func (f *fallback) OnLaunch(_ context.Context, ev *bot.Event) error {
	return f.router.Reply(ev, "Hi! Send /help to see what I can do.", nil)
}

func (f *fallback) OnUndefinedFunction(_ context.Context, ev *bot.Event, cmd *bot.Command) error {
	return f.router.Reply(ev, fmt.Sprintf("Unknown command /%s. Send /help for the list.", cmd.Name), nil)
}

func (f *fallback) OnUndefinedPayload(_ context.Context, ev *bot.Event, p *bot.Payload) error {
	if p.Owned {
		return nil
	}
	return f.router.Reply(ev, fmt.Sprintf("Unknown link %q.", p.Prefix), nil)
}
