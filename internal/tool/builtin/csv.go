package builtin

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/toolmesh/toolmesh/internal/tool"
)

// CSVAnalysisTool inspects CSV files: column listing, shape, head rows, and
// summary statistics for numeric columns.
type CSVAnalysisTool struct {
	init tool.InitGuard
}

// NewCSVAnalysisTool creates a CSV analysis tool.
func NewCSVAnalysisTool() *CSVAnalysisTool {
	return &CSVAnalysisTool{}
}

func (c *CSVAnalysisTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        "csv_analysis",
		Description: "Analyze a CSV file: structure, samples, and numeric summary statistics",
		Category:    "data",
		Version:     "1.0.0",
		Parameters: []tool.Parameter{
			{Name: "file_path", Type: tool.TypeString, Description: "Path of the CSV file", Required: true},
			{Name: "operation", Type: tool.TypeString, Description: "Analysis operation", Required: true,
				Enum: []any{"describe", "head", "info", "columns", "shape"}},
			{Name: "rows", Type: tool.TypeInteger, Description: "Row count for the head operation", Default: 5},
		},
		Tags: []string{"data", "csv"},
	}
}

func (c *CSVAnalysisTool) Initialize(_ context.Context) error {
	return c.init.Do(nil)
}

func (c *CSVAnalysisTool) Execute(_ context.Context, args map[string]any) (*tool.Result, error) {
	path := stringArg(args, "file_path", "")
	operation := stringArg(args, "operation", "")
	rows := intArg(args, "rows", 5)

	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Fail("file does not exist: %s", path), nil
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return tool.Fail("csv file is empty: %s", path), nil
	}

	header := records[0]
	body := records[1:]

	out := map[string]any{"file_path": path, "operation": operation}

	switch operation {
	case "columns":
		out["data"] = header
	case "shape":
		out["data"] = map[string]int{"rows": len(body), "columns": len(header)}
	case "head":
		if rows < 0 {
			rows = 0
		}
		if rows > len(body) {
			rows = len(body)
		}
		sample := make([]map[string]string, 0, rows)
		for _, record := range body[:rows] {
			sample = append(sample, rowToMap(header, record))
		}
		out["data"] = sample
	case "info":
		out["data"] = map[string]any{
			"columns":         header,
			"row_count":       len(body),
			"non_null_counts": nonNullCounts(header, body),
		}
	case "describe":
		out["data"] = describeNumeric(header, body)
	}

	return tool.Ok(out), nil
}

func rowToMap(header, record []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(record) {
			m[col] = record[i]
		}
	}
	return m
}

func nonNullCounts(header []string, body [][]string) map[string]int {
	counts := make(map[string]int, len(header))
	for i, col := range header {
		for _, record := range body {
			if i < len(record) && record[i] != "" {
				counts[col]++
			}
		}
	}
	return counts
}

// describeNumeric computes count/mean/std/min/max per numeric column. Columns
// with no parseable values are skipped.
func describeNumeric(header []string, body [][]string) map[string]map[string]float64 {
	stats := make(map[string]map[string]float64)

	for i, col := range header {
		var values []float64
		for _, record := range body {
			if i >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(record[i], 64); err == nil {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		minV, maxV, sum := values[0], values[0], 0.0
		for _, v := range values {
			sum += v
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		mean := sum / float64(len(values))

		var variance float64
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(values))

		stats[col] = map[string]float64{
			"count": float64(len(values)),
			"mean":  mean,
			"std":   math.Sqrt(variance),
			"min":   minV,
			"max":   maxV,
		}
	}
	return stats
}
