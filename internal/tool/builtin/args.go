// Package builtin provides the stock toolmesh tools: web search, file
// operations, and CSV analysis.
package builtin

// Argument maps arrive from JSON, so numbers come through as float64 and every
// value needs a typed read with a fallback.

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
