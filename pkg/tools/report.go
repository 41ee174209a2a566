package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// ReportBuilder returns a tool that renders a titled report in markdown,
// json, or plain text.
func ReportBuilder() Tool {
	return ReportBuilderAt(time.Now)
}

// ReportBuilderAt injects the clock, for deterministic output in tests.
func ReportBuilderAt(now func() time.Time) Tool {
	return Tool{
		Name:        "report_builder",
		Description: "Generate a structured report from a title and body. Formats: markdown, json, text.",
		Schema: schema.Object(map[string]*schema.Schema{
			"title":   schema.String("Report title"),
			"content": schema.String("Report body"),
			"format":  {Type: "string", Description: "Output format", Enum: []string{"markdown", "json", "text"}},
		}, "title", "content"),
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				Title   string `json:"title"`
				Content string `json:"content"`
				Format  string `json:"format"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			if strings.TrimSpace(args.Title) == "" {
				return nil, fmt.Errorf("title is required")
			}
			if args.Format == "" {
				args.Format = "markdown"
			}
			timestamp := now().Format("2006-01-02 15:04:05")

			var rendered string
			switch args.Format {
			case "markdown":
				rendered = fmt.Sprintf("# %s\n\n**Generated:** %s\n\n%s\n", args.Title, timestamp, args.Content)
			case "json":
				payload, err := json.Marshal(map[string]string{
					"title":     args.Title,
					"timestamp": timestamp,
					"content":   args.Content,
				})
				if err != nil {
					return nil, err
				}
				rendered = string(payload)
			case "text":
				rendered = fmt.Sprintf("%s\n%s\n\nGenerated: %s\n\n%s\n",
					args.Title, strings.Repeat("=", len(args.Title)), timestamp, args.Content)
			default:
				return nil, fmt.Errorf("unsupported format %q", args.Format)
			}
			return map[string]any{
				"title":  args.Title,
				"format": args.Format,
				"report": rendered,
			}, nil
		},
	}
}

// Builtin returns the default demo tool set.
func Builtin() []Tool {
	return []Tool{
		Calculator(),
		DataAnalysis(),
		KnowledgeSearch(),
		NewFileManager().Tool(),
		ReportBuilder(),
	}
}
