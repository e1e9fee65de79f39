package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/finchat/internal/chat"
	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/spf13/cobra"
)

var sendStream bool

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message to the assistant and print the reply",
	Long: `Send a single message and print the assistant's reply.

Signed-in users continue their own session; guests get a fresh one each time.

Examples:
  finchat send "How much did I spend on groceries last month?"
  finchat send --stream "Summarize my accounts"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().BoolVarP(&sendStream, "stream", "s", false, "stream the reply as it is written")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("message is empty")
	}

	ctrl := chat.NewController(chat.Config{
		Sender:   apiClient,
		Identity: creds,
		Logger:   logger,
	})

	if sendStream || cfg.Stream {
		return sendStreaming(ctrl, text)
	}

	ctrl.Send(context.Background(), text)
	if msg := ctrl.Err(); msg != "" {
		return errors.New(msg)
	}
	if navigator.Target() != "" {
		return errors.New("session expired")
	}

	reply, ok := lastAssistant(ctrl.Messages().Messages())
	if !ok {
		return errors.New("no reply received")
	}
	printReply(reply)
	return nil
}

// sendStreaming prints tokens as they arrive.
func sendStreaming(ctrl *chat.Controller, text string) error {
	out := &streamPrinter{w: os.Stdout}
	unsubscribe := ctrl.Messages().Subscribe(func() {
		_, id := ctrl.Tracker().Pending()
		if id == "" {
			return
		}
		if msg, ok := ctrl.Messages().Get(id); ok {
			out.update(msg.Content)
		}
	})

	ctrl.SendStream(context.Background(), text)
	unsubscribe()

	final := out.printed
	if reply, ok := lastAssistant(ctrl.Messages().Messages()); ok {
		final = reply.Content
	}
	out.finish(final)

	if msg := ctrl.Err(); msg != "" {
		return errors.New(msg)
	}
	if navigator.Target() != "" {
		return errors.New("session expired")
	}
	return nil
}

// streamPrinter writes a growing reply without repeating what is already on
// screen.
type streamPrinter struct {
	w       io.Writer
	printed string
}

// update prints the part of content past what was printed. Content that no
// longer extends the printed text is left for finish.
func (p *streamPrinter) update(content string) {
	if len(content) <= len(p.printed) || !strings.HasPrefix(content, p.printed) {
		return
	}
	fmt.Fprint(p.w, content[len(p.printed):])
	p.printed = content
}

// finish settles the output on final. If final does not extend the streamed
// text it is printed again in full on its own line.
func (p *streamPrinter) finish(final string) {
	switch {
	case final == p.printed:
	case strings.HasPrefix(final, p.printed):
		fmt.Fprint(p.w, final[len(p.printed):])
	default:
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprint(p.w, final)
	}
	if p.printed != "" || final != "" {
		fmt.Fprintln(p.w)
	}
	p.printed = final
}

func lastAssistant(msgs []models.Message) (models.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}

// printReply renders markdown only when stdout is a TTY so piped output stays clean.
func printReply(msg models.Message) {
	if !isStdoutTTY() {
		fmt.Println(msg.Content)
		return
	}
	fmt.Fprintln(os.Stdout, defaultTheme.assistantStyle().Render(msg.AgentLabel()))
	fmt.Print(renderMarkdown(msg.Content))
}
