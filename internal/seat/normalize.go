// Package seat maps the free-form section and row labels used by ticket
// sellers onto comparable values.  Both normalizers are total: any input
// yields either a value or ok == false, never a panic.
package seat

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minSection = 100
	maxSection = 599
)

// NormalizeSection buckets a numeric section into its hundred, e.g.
// "134" -> "100x".  Sections outside 100..599 and non-numeric labels such
// as "VIP" or "Floor A" have no token.
func NormalizeSection(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !isDigits(s) {
		return "", false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minSection || n > maxSection {
		return "", false
	}
	return fmt.Sprintf("%dx", n/100*100), true
}

// NormalizeRow turns a row label into a number.  Numeric labels parse as
// integers.  Letters follow the row sequence printed on seating charts:
// A..Z are 1..26 and the doubled letters AA..ZZ continue at 27..52.  Mixed
// pairs such as "AB" and anything longer are not rows.
func NormalizeRow(raw string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if isDigits(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	switch len(s) {
	case 1:
		if idx, ok := letterIndex(s[0]); ok {
			return idx, true
		}
	case 2:
		if s[0] != s[1] {
			return 0, false
		}
		if idx, ok := letterIndex(s[0]); ok {
			return 26 + idx, true
		}
	}
	return 0, false
}

// letterIndex returns 1 for 'A' through 26 for 'Z'.
func letterIndex(ch byte) (int, bool) {
	if ch < 'A' || ch > 'Z' {
		return 0, false
	}
	return int(ch-'A') + 1, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
