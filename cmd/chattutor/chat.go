package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/chattutor/kernel"
	"github.com/tailored-agentic-units/chattutor/plan"
	"github.com/tailored-agentic-units/chattutor/router"
	"github.com/tailored-agentic-units/chattutor/session"
)

var (
	chatSession string
	chatTopic   string
	showPlan    bool
)

// exitWords end the chat loop without running a turn.
var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#dce0e5")).
			Padding(0, 1)
	thoughtStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#7a8599"))
	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4a90d9"))
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive tutoring session",
	Long: `Start an interactive tutoring session on a topic, or resume a saved one.

Type "exit", "quit" or "q" to leave. Asking to wrap up the session writes
a study note next to the session snapshots.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Resume the session with this id")
	chatCmd.Flags().StringVarP(&chatTopic, "topic", "t", "", "Topic for a new session")
	chatCmd.Flags().BoolVar(&showPlan, "plan", true, "Show the planner's reasoning and route after each turn")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !verbose && cfg.Observer == "slog" {
		cfg.Observer = "warn"
	}

	k, err := newKernel(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var st *session.State
	if chatSession != "" {
		st, err = k.Resume(ctx, chatSession)
		if err != nil {
			return fmt.Errorf("failed to resume session %s: %w", chatSession, err)
		}
	} else {
		st = k.Start(chatTopic)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(sessionHeader(st)))
	if len(st.Transcript) > 0 {
		color.New(color.FgCyan).Fprintf(out, "Resumed with %d messages.\n", len(st.Transcript))
	}

	return chatLoop(ctx, k, st, cmd.InOrStdin(), out, renderer)
}

func sessionHeader(st *session.State) string {
	return fmt.Sprintf("%s · session %s", st.CurrentTopic, st.ID)
}

func chatLoop(ctx context.Context, k *kernel.Kernel, st *session.State, in io.Reader, out io.Writer, renderer *glamour.TermRenderer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, promptStyle.Render("you › "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			return nil
		}

		result, err := k.Turn(ctx, st, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			color.New(color.FgRed).Fprintf(out, "error: %v\n", err)
			continue
		}
		st = result.State

		if showPlan {
			printPlan(out, result.Plan, result.Path)
		}

		rendered, err := renderer.Render(result.Reply())
		if err != nil {
			rendered = result.Reply() + "\n"
		}
		fmt.Fprint(out, rendered)
		printStatus(out, result)

		if st.ShouldExit {
			return nil
		}
	}
}

func printPlan(out io.Writer, p *plan.Plan, path []router.Stage) {
	if p != nil && p.ThoughtProcess != "" {
		fmt.Fprintln(out, thoughtStyle.Render(p.ThoughtProcess))
	}
	fmt.Fprintln(out, pathStyle.Render(strings.Join(router.Strings(path), " → ")))
}

func printStatus(out io.Writer, result *kernel.Result) {
	faint := color.New(color.Faint)
	if result.Compressed {
		faint.Fprintf(out, "summary updated through message %d\n", result.State.Cursor)
	}
	if result.NoteLocation != "" {
		color.New(color.FgGreen).Fprintf(out, "study note saved to %s\n", result.NoteLocation)
	}
	if result.State.ShouldExit && result.Location != "" {
		faint.Fprintf(out, "session saved to %s\n", result.Location)
	}
}
