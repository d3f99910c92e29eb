package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/taskmate/pkg/chat"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/prompts"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with TaskMate in the terminal",
		Long: `Starts an interactive session against the configured storage and model.
Proposed actions are applied only after you confirm them. Type /quit to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// Keep the transcript readable: logs go to stderr.
			logger := newLogger(cfg, os.Stderr)
			a, err := newApp(cmd.Context(), cfg, logger, newGenerator)
			if err != nil {
				return err
			}
			defer a.Close()

			a.pending.Start(cmd.Context())
			defer a.pending.Shutdown()

			return runChat(cmd.Context(), a.orch, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user id to act as")
	return cmd
}

// runChat reads one message per line until EOF or /quit.
func runChat(ctx context.Context, orch *chat.Orchestrator, userID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var history []prompts.Turn
	conversationID := ""

	fmt.Fprintln(out, "TaskMate. Type /quit to exit, /pending to see pending actions.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/pending":
			if meta := orch.Pending(userID); meta != nil {
				kinds := make([]string, len(meta.Kinds))
				for i, k := range meta.Kinds {
					kinds[i] = string(k)
				}
				fmt.Fprintf(out, "%d pending (%s), expires in %s\n", meta.Count, strings.Join(kinds, ", "), meta.Remaining.Round(time.Second))
			} else {
				fmt.Fprintln(out, "nothing pending")
			}
			continue
		}

		res, err := orch.HandleTurn(ctx, userID, line, chat.TurnContext{ConversationID: conversationID, History: history})
		if err != nil {
			if appErr, ok := apperrors.As(err); ok {
				fmt.Fprintln(out, appErr.Public())
				continue
			}
			return err
		}
		if conversationID == "" {
			conversationID = res.TurnID
		}
		fmt.Fprintln(out, res.Reply)
		if res.PendingSummary != "" && res.Outcome == chat.OutcomeProposed {
			fmt.Fprintf(out, "  pending: %s\n", res.PendingSummary)
		}

		history = append(history,
			prompts.Turn{Role: prompts.RoleUser, Content: line},
			prompts.Turn{Role: prompts.RoleAssistant, Content: res.Reply},
		)
	}
}
