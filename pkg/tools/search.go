package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// matchesKeyword requires whole-word matches so short keywords like "ai"
// do not fire inside unrelated words.
func matchesKeyword(query, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(query, keyword)
	}
	for _, word := range strings.FieldsFunc(query, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if word == keyword {
			return true
		}
	}
	return false
}

// knowledgeBase holds the canned lookup entries served by KnowledgeSearch,
// keyed by domain and then by keyword.
var knowledgeBase = map[string]map[string]string{
	"tech": {
		"go":               "Go: statically typed, compiled language by Google. Strong concurrency primitives, single-binary deployment, widely used for services and infra tooling.",
		"python":           "Python: interpreted, dynamically typed language. Dominant in data science and ML tooling; major libraries include NumPy, Pandas, PyTorch.",
		"machine learning": "Machine learning: supervised, unsupervised, and reinforcement paradigms. Current focus areas: large language models and generative systems.",
		"ai":               "AI: field of computer science concerned with systems that perform tasks requiring human-like reasoning. Applications: NLP, computer vision, planning.",
	},
	"business": {
		"roi":        "ROI = (gain - cost) / cost * 100. Related metrics: ROAS, IRR, NPV. Typical tech-project timeframes run one to three years.",
		"investment": "Investment appraisal compares expected returns against cost of capital; sector benchmarks commonly fall between 15% and 30%.",
	},
	"science": {
		"statistics": "Descriptive statistics: mean, median, standard deviation. Inferential statistics: hypothesis tests, confidence intervals. Common significance threshold: p < 0.05.",
	},
}

// KnowledgeSearch returns a tool that answers lookups from a small canned
// knowledge base, standing in for a web search backend.
func KnowledgeSearch() Tool {
	return Tool{
		Name:        "knowledge_search",
		Description: "Look up background information on a topic. Domains: tech, business, science.",
		Schema: schema.Object(map[string]*schema.Schema{
			"query":  schema.String("Topic or question to look up"),
			"domain": {Type: "string", Description: "Knowledge domain to search", Enum: []string{"tech", "business", "science", "general"}},
		}, "query"),
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				Query  string `json:"query"`
				Domain string `json:"domain"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			if strings.TrimSpace(args.Query) == "" {
				return nil, fmt.Errorf("query is required")
			}
			query := strings.ToLower(args.Query)

			domains := []string{args.Domain}
			if args.Domain == "" || args.Domain == "general" {
				domains = []string{"tech", "business", "science"}
			}
			for _, domain := range domains {
				entries := knowledgeBase[domain]
				keywords := make([]string, 0, len(entries))
				for keyword := range entries {
					keywords = append(keywords, keyword)
				}
				// Longest keyword first so "machine learning" beats "ai".
				sort.Slice(keywords, func(i, j int) bool {
					if len(keywords[i]) != len(keywords[j]) {
						return len(keywords[i]) > len(keywords[j])
					}
					return keywords[i] < keywords[j]
				})
				for _, keyword := range keywords {
					if !matchesKeyword(query, keyword) {
						continue
					}
					return map[string]any{
						"query":  args.Query,
						"domain": domain,
						"result": entries[keyword],
					}, nil
				}
			}
			return map[string]any{
				"query":  args.Query,
				"domain": args.Domain,
				"result": fmt.Sprintf("no entry found for %q in the local knowledge base", args.Query),
			}, nil
		},
	}
}
