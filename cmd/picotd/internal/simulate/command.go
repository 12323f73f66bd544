package simulate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picotd/cmd/picotd/internal"
	"github.com/sipeed/picotd/cmd/picotd/internal/app"
	"github.com/sipeed/picotd/cmd/picotd/internal/demo"
	"github.com/sipeed/picotd/pkg/config"
	"github.com/sipeed/picotd/pkg/engine/loopback"
	"github.com/sipeed/picotd/pkg/td"
)

const (
	simUser = int64(1001)
	simChat = int64(1001)

	settleQuiet = 50 * time.Millisecond
	settleMax   = 2 * time.Second
)

// DefaultScript walks through every demo feature. "tap N" presses button N
// (1-based) of the last keyboard the bot sent.
var DefaultScript = []string{
	"/start",
	"/help",
	"/echo hello",
	"/survey",
	"Ada",
	"tap 2",
	"/start ref-friend",
	"/dance",
}

func NewSimulateCommand() *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:     "simulate [message...]",
		Aliases: []string{"sim"},
		Short:   "Talk to the bot over an in-process engine",
		Long: `Runs the bot against the loopback engine and prints the conversation.
Messages come from the arguments, from --script (one per line, "-" for stdin)
or from a built-in tour. A line "tap N" presses button N of the last keyboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args
			if scriptPath != "" {
				lines, err := readScript(cmd.InOrStdin(), scriptPath)
				if err != nil {
					return err
				}
				script = lines
			}
			if len(script) == 0 {
				script = DefaultScript
			}

			cfg, err := internal.LoadConfig()
			if err != nil {
				return err
			}
			return Simulate(cmd.Context(), cfg, script, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "File with one message per line")

	return cmd
}

func readScript(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// Simulate runs script against the demo bot on a loopback engine. Engine and
// persist settings of cfg are replaced so nothing outside the process is
// touched.
func Simulate(ctx context.Context, cfg *config.Config, script []string, out io.Writer) error {
	sim := *cfg
	sim.Engine.Driver = "loopback"
	sim.Persist.Store = "memory"
	sim.Bot.PublishCommands = false

	eng := loopback.New(loopback.Options{QueueCapacity: sim.Poller.QueueSize})
	a, err := app.New(&sim, eng, demo.NewRouter)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- a.Run(runCtx) }()

	if err := waitLogin(ctx, a, errc); err != nil {
		cancel()
		return err
	}

	t := &transcript{eng: eng, app: a, out: out}
	for _, line := range script {
		if err := t.step(ctx, line); err != nil {
			cancel()
			<-errc
			return err
		}
	}

	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func waitLogin(ctx context.Context, a *app.App, errc <-chan error) error {
	deadline := time.After(settleMax)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for a.Client.Me() == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return fmt.Errorf("bot stopped before login: %w", err)
		case <-deadline:
			return errors.New("bot did not log in")
		case <-ticker.C:
		}
	}
	return nil
}

type transcript struct {
	eng *loopback.Engine
	app *app.App
	out io.Writer

	sent    int
	answers int
	queries int
	markup  [][]string // button texts of the last keyboard
	data    [][]byte
}

func (t *transcript) step(ctx context.Context, line string) error {
	h := t.app.Client.Handle()

	if rest, ok := strings.CutPrefix(line, "tap "); ok {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 1 || n > len(t.data) {
			return fmt.Errorf("no button %q on the last keyboard", rest)
		}
		fmt.Fprintf(t.out, "you> [%s]\n", t.flat()[n-1])
		t.queries++
		if err := t.eng.Inject(h, tapUpdate(strconv.Itoa(t.queries), t.data[n-1])); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(t.out, "you> %s\n", line)
		if _, err := t.eng.InjectText(h, simChat, simUser, line); err != nil {
			return err
		}
	}

	t.settle(ctx)
	t.flush()
	return nil
}

// settle waits until the bot stops producing output.
func (t *transcript) settle(ctx context.Context) {
	h := t.app.Client.Handle()
	last := -1
	quietSince := time.Now()
	deadline := time.Now().Add(settleMax)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		n := len(t.eng.Sent(h)) + len(t.eng.Answers(h))
		if n != last {
			last = n
			quietSince = time.Now()
		} else if n > t.sent+t.answers && time.Since(quietSince) >= settleQuiet {
			return
		} else if time.Since(quietSince) >= 4*settleQuiet {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *transcript) flush() {
	h := t.app.Client.Handle()

	answers := t.eng.Answers(h)
	for _, a := range answers[t.answers:] {
		if a.Text != "" {
			fmt.Fprintf(t.out, "bot* %s\n", a.Text)
		}
	}
	t.answers = len(answers)

	sent := t.eng.Sent(h)
	for _, m := range sent[t.sent:] {
		fmt.Fprintf(t.out, "bot> %s\n", strings.ReplaceAll(m.Text, "\n", "\n     "))
		if m.ReplyMarkup == nil {
			continue
		}
		t.markup, t.data = nil, nil
		for _, row := range m.ReplyMarkup.Rows {
			texts := make([]string, 0, len(row))
			for _, b := range row {
				texts = append(texts, b.Text)
				t.data = append(t.data, b.Data)
			}
			t.markup = append(t.markup, texts)
			fmt.Fprintf(t.out, "     [%s]\n", strings.Join(texts, "] ["))
		}
	}
	t.sent = len(sent)
}

func tapUpdate(id string, data []byte) *td.UpdateNewCallbackQuery {
	return &td.UpdateNewCallbackQuery{
		ID:           id,
		SenderUserID: simUser,
		ChatID:       simChat,
		Payload:      data,
	}
}

func (t *transcript) flat() []string {
	var out []string
	for _, row := range t.markup {
		out = append(out, row...)
	}
	return out
}
