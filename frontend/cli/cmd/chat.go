package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wthorbecke/gather/backend/conversation"
	"github.com/wthorbecke/gather/backend/event"
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chat",
		Short:   "Talk to your task assistant",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), getGlobalOptions(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			return runChat(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	return cmd
}

func runChat(ctx context.Context, app *app, in io.Reader, out io.Writer) error {
	conversationID := app.orchestrator.ConversationID()

	events, unsubscribe := app.router.Subscribe(ctx, event.SubscribeOptions{
		EventTypes:     []string{"card.*"},
		ConversationID: conversationID.String(),
	})
	defer unsubscribe()

	go printCards(events, out)

	fmt.Fprintln(out, "What do you want to get done? (/help for commands)")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := dispatch(ctx, app.orchestrator, line)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func dispatch(ctx context.Context, orchestrator *conversation.Orchestrator, line string) (bool, error) {
	command, rest, _ := strings.Cut(line, " ")

	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		return false, fmt.Errorf("commands: /pick <option>, /back, /yes, /no, /retry, /quit")
	case "/pick":
		return false, orchestrator.SelectQuickReply(ctx, strings.TrimSpace(rest))
	case "/back":
		return false, orchestrator.GoBack(ctx)
	case "/yes":
		return false, orchestrator.ResolveDuplicate(ctx, true)
	case "/no":
		return false, orchestrator.ResolveDuplicate(ctx, false)
	case "/retry":
		return false, orchestrator.Retry(ctx)
	default:
		return false, orchestrator.Submit(ctx, line)
	}
}

// printCards renders card updates as they arrive. Streaming snapshots are
// skipped; the final answer card carries the full text.
func printCards(events <-chan *event.StreamEvent, out io.Writer) {
	for ev := range events {
		card, ok := ev.Payload.(conversation.Card)
		if !ok {
			continue
		}
		if card.Kind == conversation.CardStreaming || card.Kind == conversation.CardNone {
			continue
		}
		fmt.Fprintln(out, renderCard(card))
	}
}
