package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// DataAnalysis returns a tool that computes descriptive statistics over a
// numeric series, given either as a JSON array or as comma-separated values.
func DataAnalysis() Tool {
	return Tool{
		Name:        "data_analysis",
		Description: "Compute descriptive statistics (count, mean, median, min, max) for a numeric series. Analysis type 'advanced' adds standard deviation and variance.",
		Schema: schema.Object(map[string]*schema.Schema{
			"data":     schema.String("Numbers as a JSON array or comma-separated values"),
			"analysis": {Type: "string", Description: "Analysis type", Enum: []string{"base", "advanced"}},
		}, "data"),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				Data     string `json:"data"`
				Analysis string `json:"analysis"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			values, err := parseSeries(args.Data)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("no numbers to analyze")
			}

			stats := map[string]any{
				"count":  len(values),
				"mean":   mean(values),
				"median": median(values),
				"min":    values[0],
				"max":    values[len(values)-1],
			}
			if args.Analysis == "advanced" {
				variance := varianceOf(values)
				stats["variance"] = variance
				stats["std_dev"] = math.Sqrt(variance)
			}
			return stats, nil
		},
	}
}

// parseSeries reads numbers from a JSON array or a comma-separated list and
// returns them sorted ascending.
func parseSeries(input string) ([]float64, error) {
	input = strings.TrimSpace(input)
	var values []float64
	if strings.HasPrefix(input, "[") {
		if err := json.Unmarshal([]byte(input), &values); err != nil {
			return nil, fmt.Errorf("parse JSON series: %w", err)
		}
	} else {
		for _, field := range strings.Split(input, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse number %q: %w", field, err)
			}
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return values, nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median assumes values are sorted.
func median(values []float64) float64 {
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// varianceOf returns the sample variance, 0 for fewer than two values.
func varianceOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values)-1)
}
