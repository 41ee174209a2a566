package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/condotto-ai/condotto/pkg/clients"
	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/types"
)

// runREPL starts an interactive REPL session for the given app.
func runREPL(app *app, in io.Reader, out io.Writer) error {
	if app == nil {
		return fmt.Errorf("app is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	logger.Debug(app.log, "repl start", logger.Fields{
		"provider": string(app.client.Provider()),
		"model":    app.client.Model(),
		"stream":   app.cfg.Stream,
	})

	ctx := context.Background()
	scanner := bufio.NewScanner(in)

	printWelcome(out)

	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := handleCommand(ctx, app, input, out)
			if shouldQuit {
				break
			}
			if handled {
				continue
			}
		}

		if err := chat(ctx, app, input, out); err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// chat sends one user turn to the client. The client appends the exchange
// to memory only on success, so failed turns leave history untouched.
func chat(ctx context.Context, app *app, input string, out io.Writer) error {
	opts := []clients.InvokeOption{
		clients.WithMemory(app.mem),
		clients.WithTools(app.toolset...),
		clients.WithMaxToolTurns(app.cfg.MaxToolTurns),
	}

	var resp *types.Response
	var err error
	if app.cfg.Stream {
		resp, err = app.client.StreamInvoke(ctx, types.Text(input), func(_ context.Context, chunk string) error {
			_, _ = fmt.Fprint(out, chunk)
			return nil
		}, opts...)
	} else {
		resp, err = app.client.Invoke(ctx, types.Text(input), opts...)
	}
	if err != nil {
		return err
	}

	app.tracker.Track(resp, app.client.Model())
	if app.cfg.Stream {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out)
	} else {
		_, _ = fmt.Fprintf(out, "%s\n\n", resp.Text())
	}
	return nil
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "=== Condotto - Interactive Mode ===")
	_, _ = fmt.Fprintln(out, "Type your message and press Enter. Commands:")
	printCommands(out)
}

func handleCommand(ctx context.Context, app *app, input string, out io.Writer) (bool, bool) {
	cmd, arg := splitCommand(input)
	switch cmd {
	case "/help", "/h":
		printHelp(out)
		return true, false
	case "/clear", "/c":
		app.mem.Clear()
		_, _ = fmt.Fprintln(out, "Conversation history cleared.")
		_, _ = fmt.Fprintln(out)
		return true, false
	case "/stats":
		printStats(app, out)
		return true, false
	case "/task":
		if arg == "" {
			_, _ = fmt.Fprintln(out, "Usage: /task <description>")
			_, _ = fmt.Fprintln(out)
			return true, false
		}
		runTask(ctx, app, arg, out)
		return true, false
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true, true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n\n", input)
		return true, false
	}
}

// splitCommand separates the command word from its argument.
func splitCommand(input string) (string, string) {
	cmd, arg, _ := strings.Cut(input, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func runTask(ctx context.Context, app *app, description string, out io.Writer) {
	results := app.system.ExecuteTask(ctx, description)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, _ = fmt.Fprintf(out, "[%s]\n%s\n\n", name, results[name])
	}
}

func printStats(app *app, out io.Writer) {
	stats := app.tracker.Stats()
	_, _ = fmt.Fprintf(out, "Requests:          %d\n", stats.Requests)
	_, _ = fmt.Fprintf(out, "Prompt tokens:     %d\n", stats.PromptTokens)
	_, _ = fmt.Fprintf(out, "Completion tokens: %d\n", stats.CompletionTokens)
	_, _ = fmt.Fprintf(out, "Cached tokens:     %d\n", stats.CachedTokens)
	_, _ = fmt.Fprintf(out, "Total tokens:      %d\n", stats.TotalTokens)
	_, _ = fmt.Fprintf(out, "Cache hit rate:    %.1f%%\n", stats.CacheHitRate*100)

	models := make([]string, 0, len(stats.ByModel))
	for model := range stats.ByModel {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		usage := stats.ByModel[model]
		_, _ = fmt.Fprintf(out, "  %s: %d requests, %d tokens\n",
			model, usage.Requests, usage.PromptTokens+usage.CompletionTokens+usage.CachedTokens)
	}
	_, _ = fmt.Fprintln(out)
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	printCommands(out)
}

func printCommands(out io.Writer) {
	_, _ = fmt.Fprintln(out, "  /help              - Show this help message")
	_, _ = fmt.Fprintln(out, "  /clear             - Clear conversation history")
	_, _ = fmt.Fprintln(out, "  /stats             - Show token usage statistics")
	_, _ = fmt.Fprintln(out, "  /task <desc>       - Run the multi-agent system on a task")
	_, _ = fmt.Fprintln(out, "  /quit              - Exit the program")
	_, _ = fmt.Fprintln(out)
}
