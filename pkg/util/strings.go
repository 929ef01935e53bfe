package util

import (
    "strconv"
    "strings"
)

// ParseIntDefault returns def when s is empty or not an integer.
func ParseIntDefault(s string, def int) int {
    v, err := strconv.Atoi(strings.TrimSpace(s))
    if err != nil {
        return def
    }
    return v
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
