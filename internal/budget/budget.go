// Package budget resolves the generation token ceiling for a model.
package budget

import "strings"

// DefaultMaxTokens is returned for models missing from the table.
const DefaultMaxTokens = 8192

type entry struct {
	match     string
	maxTokens int
}

// Ordered most specific first; the first substring hit wins.
var table = []entry{
	{"claude-opus-4", 32000},
	{"claude-sonnet-4", 64000},
	{"claude-3-7-sonnet", 64000},
	{"claude-3-5-sonnet", 8192},
	{"claude-3-5-haiku", 8192},
	{"claude-haiku-4", 64000},
	{"claude-3-opus", 4096},
	{"claude-3-haiku", 4096},
	{"gpt-4.1", 32768},
	{"gpt-4o-mini", 16384},
	{"gpt-4o", 16384},
	{"o4-mini", 100000},
	{"o3", 100000},
	{"gemini-2.5", 65536},
	{"gemini-2.0", 8192},
	{"gemini-1.5", 8192},
	{"qwen2.5-coder", 32768},
	{"llama3", 8192},
	{"codellama", 16384},
}

// Resolve returns override when positive, otherwise the table ceiling for model.
func Resolve(model string, override int) int {
	if override > 0 {
		return override
	}
	m := strings.ToLower(model)
	if m == "" {
		return DefaultMaxTokens
	}
	for _, e := range table {
		if strings.Contains(m, e.match) {
			return e.maxTokens
		}
	}
	return DefaultMaxTokens
}
