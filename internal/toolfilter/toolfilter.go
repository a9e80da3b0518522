// Package toolfilter selects which MCP tools `cozyclient mcp` serves from
// --include-tools and --exclude-tools.
package toolfilter

import (
	"fmt"
	"strings"
)

// ParseList splits a comma-separated list of tool names. Blank entries are
// dropped and duplicates keep their first position.
func ParseList(csv string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(csv, ",") {
		name := strings.TrimSpace(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Select returns the tools of available to serve. With include only the
// named tools are kept, in available order; an unknown name is an error.
// With exclude the named tools are dropped; excluding every tool is an
// error. Both at once is an error.
func Select(available, include, exclude []string) ([]string, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("--include-tools and --exclude-tools cannot be used together")
	}

	drop := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		drop[name] = true
	}

	if len(include) > 0 {
		keep := make(map[string]bool, len(include))
		for _, name := range include {
			if !contains(available, name) {
				return nil, unknownTool(name, available)
			}
			keep[name] = true
		}
		for _, name := range available {
			if !keep[name] {
				drop[name] = true
			}
		}
	}

	var tools []string
	for _, name := range available {
		if !drop[name] {
			tools = append(tools, name)
		}
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("every tool is excluded, nothing to serve")
	}
	return tools, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func unknownTool(name string, available []string) error {
	msg := fmt.Sprintf("unknown tool %q (available: %s)", name, strings.Join(available, ", "))
	if s := suggest(name, available); s != "" {
		msg += fmt.Sprintf(", did you mean %q?", s)
	}
	return fmt.Errorf("%s", msg)
}

// suggest returns the closest name within an edit distance of 3.
func suggest(name string, available []string) string {
	best, bestDist := "", 4
	for _, candidate := range available {
		if d := distance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// distance is the Levenshtein distance between a and b, by bytes.
func distance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
