package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/cli"
	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/spf13/cobra"
)

const (
	resetCommand = "/reset"
	exitCommand  = "/exit"
	prompt       = "> "
)

// Asker answers one question within a session
type Asker interface {
	Ask(ctx context.Context, session *domain.Session, question string, opts service.AskOptions, onToken func(string)) (*service.AskResult, error)
}

// ChatCmd returns the chat command
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "chat",
		Short:       "Ask questions about indexed documents",
		Long:        "Interactive question answering over stdin. Type /reset to clear the conversation and /exit to quit.",
		Args:        cobra.NoArgs,
		RunE:        runChatCmd,
		Annotations: map[string]string{cli.EnvAnnotation: "ASKDOC_DATABASE_URL,ASKDOC_VECTOR_BACKEND,ASKDOC_COLLECTION,ASKDOC_OPENAI_API_KEY"},
	}

	cmd.Flags().Int("top-k", service.DefaultTopK, "Number of chunks to retrieve (1-10)")
	cmd.Flags().Float32("temperature", 0, "Generation temperature (0-1)")

	return cmd
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	temperature, _ := cmd.Flags().GetFloat32("temperature")
	if topK < service.MinTopK || topK > service.MaxTopK {
		return fmt.Errorf("--top-k must be between %d and %d", service.MinTopK, service.MaxTopK)
	}
	if temperature < 0 || temperature > 1 {
		return fmt.Errorf("--temperature must be between 0 and 1")
	}

	cfg, logger, cleanup, err := Setup()
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := service.AskOptions{TopK: topK, Temperature: temperature}
	return chatLoop(cmd.Context(), a.Chat, a.Sessions.Create(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop reads one question per line until EOF or /exit.
func chatLoop(ctx context.Context, asker Asker, session *domain.Session, opts service.AskOptions, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case exitCommand:
			return nil
		case resetCommand:
			session.Reset()
			fmt.Fprintln(out, "Chat history cleared.")
		default:
			result, err := asker.Ask(ctx, session, line, opts, func(token string) {
				fmt.Fprint(out, token)
			})
			if err != nil {
				fmt.Fprintf(out, "\nError: %v\n", err)
				break
			}
			fmt.Fprintln(out)
			printSources(out, result.Sources)
		}
		fmt.Fprint(out, prompt)
	}
	return scanner.Err()
}

func printSources(out io.Writer, sources []domain.RetrievedDocument) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "Sources:")
	for _, s := range sources {
		fmt.Fprintf(out, "  [page %s] %s\n", s.PageLabel(), snippet(s.Text, 80))
	}
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
