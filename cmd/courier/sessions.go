package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newCmd creates a new session
func newCmd() *cobra.Command {
	var title string
	var model string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new session",
		Long:  `Create a new chat session with an optional title and model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			if title == "" {
				title = fmt.Sprintf("Session %s", time.Now().Format("2006-01-02 15:04"))
			}
			if model == "" {
				model = cfg.Backend.Model
			}

			sess := eng.store.CreateSession(title, model)

			fmt.Printf("Created session: %s\n", sess.ID)
			fmt.Printf("Title: %s\n", sess.Title)
			fmt.Printf("Model: %s\n", sess.Model)

			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title for the session")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model for the session")

	return cmd
}

// listCmd lists sessions
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Long:  `List all sessions with their ID, title, message count, and last update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			sessions := eng.store.Sessions()
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			current := eng.store.CurrentSession()

			fmt.Printf("%-24s %-40s %-8s %s\n", "ID", "Title", "Messages", "Updated")
			fmt.Println(strings.Repeat("-", 95))

			for _, sess := range sessions {
				marker := " "
				if current != nil && sess.ID == current.ID {
					marker = "*"
				}
				updatedAt := sess.UpdatedAt.Format("2006-01-02 15:04")
				fmt.Printf("%s%-23s %-40s %-8d %s\n", marker, sess.ID, sess.Title, sess.MessageCount, updatedAt)
			}

			return nil
		},
	}
}

// showCmd shows messages in a session
func showCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show messages in a session",
		Long:  `Display all messages in the specified session, optionally with reasoning transcripts.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			sess, err := eng.store.Session(args[0])
			if err != nil {
				return fmt.Errorf("session not found: %s", args[0])
			}

			fmt.Printf("Session: %s\n", sess.Title)
			fmt.Printf("ID:      %s\n", sess.ID)
			fmt.Printf("Model:   %s\n", sess.Model)
			fmt.Printf("Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Println(strings.Repeat("-", 80))

			for _, msg := range sess.Messages {
				fmt.Printf("\n[%s] %s\n", msg.Role, msg.Timestamp.Format("15:04:05"))
				if verbose && msg.Metadata.Thinking != "" {
					fmt.Println(strings.Repeat("-", 40))
					fmt.Println(msg.Metadata.Thinking)
					fmt.Println(strings.Repeat("-", 40))
				}
				fmt.Println(msg.Content)
				if msg.Metadata.IsError {
					fmt.Printf("(error: %s)\n", msg.Metadata.Error)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include reasoning transcripts")

	return cmd
}

// deleteCmd deletes a session
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.store.DeleteSession(args[0]); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}

			fmt.Printf("Deleted session: %s\n", args[0])
			return nil
		},
	}
}

// exportCmd writes the session snapshot to a file or stdout
func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all sessions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			data, err := eng.autosaver.Export()
			if err != nil {
				return fmt.Errorf("failed to export sessions: %w", err)
			}

			if output == "" {
				fmt.Println(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Exported %d sessions to %s\n", eng.store.Count(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")

	return cmd
}

// importCmd merges a session snapshot from a file
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import sessions from a JSON export",
		Long:  `Merge sessions from a previous export into the store. Sessions with matching IDs are replaced; others are added.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			if !eng.autosaver.Import(data) {
				return fmt.Errorf("import failed: %s is not a valid session export", args[0])
			}

			fmt.Printf("Imported sessions from %s (%d total)\n", args[0], eng.store.Count())
			return nil
		},
	}
}
