package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
)

// newChatCmd creates the `valuesbot chat` command: a terminal conversation
// with the assistant that skips Telegram entirely.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Start an interactive conversation with the assistant, or send a
single message and print the reply.

Inside the session:
  /clear     start a new conversation
  /sources   list the knowledge sources
  /values    show the stored key values
  exit       leave

Examples:
  valuesbot chat
  valuesbot chat --user 42
  valuesbot chat "Что для меня важно?"`,
		RunE: runChat,
	}

	cmd.Flags().Int64("user", 1, "user id the conversation belongs to")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetInt64("user")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if _, err := a.orchestrator.CreateThread(ctx, userID); err != nil {
		return fmt.Errorf("creating thread: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return chatTurn(ctx, a, userID, strings.Join(args, " "), out)
	}
	return chatLoop(ctx, a, userID, out)
}

func chatLoop(ctx context.Context, a *app, userID int64, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "you> ",
		HistoryFile:       historyPath(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("starting line editor: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(out, "Type a message, /clear, /sources, /values or exit.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if line == "" {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			return nil
		case "/clear":
			a.orchestrator.ClearContext(userID)
			if _, err := a.orchestrator.CreateThread(ctx, userID); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Context cleared.")
			continue
		case "/sources":
			fmt.Fprintln(out, a.orchestrator.Sources())
			continue
		case "/values":
			printValues(ctx, a, userID, out)
			continue
		}

		if err := chatTurn(ctx, a, userID, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func chatTurn(ctx context.Context, a *app, userID int64, prompt string, out io.Writer) error {
	reply, err := a.orchestrator.Request(ctx, userID, prompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n\n", reply)
	return nil
}

func printValues(ctx context.Context, a *app, userID int64, out io.Writer) {
	v, err := a.values.Get(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		fmt.Fprintln(out, "No key values stored yet.")
	case err != nil:
		fmt.Fprintf(out, "error: %v\n", err)
	default:
		fmt.Fprintf(out, "%s (updated %s)\n", v.KeyValues, v.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".valuesbot_history")
}
