package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/stream"
)

// chatCmd creates the chat command for interactive sessions
func chatCmd() *cobra.Command {
	var title string
	var model string
	var showReasoning bool

	cmd := &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Interactive chat with the assistant",
		Long: `Start an interactive chat session with the email assistant.
Provide a session ID to continue an existing session, or omit it to create a new one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			if model == "" {
				model = cfg.Backend.Model
			}

			var sess *models.ChatSession
			if len(args) > 0 {
				sess, err = eng.store.Session(args[0])
				if err != nil {
					return fmt.Errorf("session not found: %s", args[0])
				}
				if err := eng.store.SwitchSession(sess.ID); err != nil {
					return err
				}
				fmt.Printf("Continuing session: %s\n", sess.Title)
			} else {
				if title == "" {
					title = fmt.Sprintf("Chat %s", time.Now().Format("2006-01-02 15:04"))
				}
				sess = eng.store.CreateSession(title, model)
				fmt.Printf("Started new session: %s\n", sess.Title)
				fmt.Printf("ID: %s\n", sess.ID)
			}

			client := eng.newStreamClient(nil)

			fmt.Println("\nType your message and press Enter. Type 'exit' or 'quit' to end the session.")
			fmt.Println(strings.Repeat("-", 80))
			fmt.Println()

			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}

				userInput := strings.TrimSpace(scanner.Text())
				if userInput == "" {
					continue
				}

				if strings.ToLower(userInput) == "exit" || strings.ToLower(userInput) == "quit" {
					fmt.Println("\nGoodbye!")
					break
				}

				if err := runTurn(ctx, client, eng, sess.ID, userInput, showReasoning); err != nil {
					fmt.Printf("Error: %v\n\n", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title for a new session")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model for a new session (defaults to configured model)")
	cmd.Flags().BoolVarP(&showReasoning, "reasoning", "r", true, "Print the reasoning transcript while the response streams")

	return cmd
}

// runTurn sends one message and blocks until its stream finishes, printing
// the reasoning transcript as it accumulates on the pending message.
func runTurn(ctx context.Context, client *stream.Client, eng *engine, sessionID, text string, showReasoning bool) error {
	st, err := client.SendAgenticMessage(ctx, stream.SendOptions{
		SessionID:       sessionID,
		Text:            text,
		MaxLookbackDays: cfg.Backend.MaxDaysBack,
	})
	if err != nil {
		return err
	}

	// Interrupt cancels the stream instead of killing the CLI.
	waitCtx, stop := signalContext(ctx)
	defer stop()

	printed := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-st.Done():
			break wait
		case <-waitCtx.Done():
			st.Cancel()
			<-st.Done()
			break wait
		case <-ticker.C:
			if showReasoning {
				printed = printTranscriptTail(eng, sessionID, printed)
			}
		}
	}

	msgs, err := eng.store.Messages(sessionID)
	if err != nil {
		return err
	}
	last := msgs[len(msgs)-1]

	if showReasoning {
		printTranscriptTail(eng, sessionID, printed)
		fmt.Println(strings.Repeat("-", 40))
	}

	fmt.Printf("Assistant: %s\n", last.Content)
	if last.Metadata.GenerationTimeMs > 0 {
		fmt.Printf("  (%.1fs)\n", float64(last.Metadata.GenerationTimeMs)/1000)
	}
	fmt.Println()

	if streamErr := st.Err(); streamErr != nil && !errors.Is(streamErr, domain.ErrNoResponse) {
		return streamErr
	}
	return nil
}

// printTranscriptTail prints any transcript text past offset and returns the
// new offset.
func printTranscriptTail(eng *engine, sessionID string, offset int) int {
	msgs, err := eng.store.Messages(sessionID)
	if err != nil || len(msgs) == 0 {
		return offset
	}
	thinking := msgs[len(msgs)-1].Metadata.Thinking
	if len(thinking) > offset {
		fmt.Print(thinking[offset:])
		return len(thinking)
	}
	return offset
}
