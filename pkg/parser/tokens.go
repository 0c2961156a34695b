package parser

import (
	"strconv"
	"strings"
)

// scanNumber reads a number at the start of s using the grammar
// [-+]?digits*.digits+ | digits+ and returns the matched text.
// The unsigned integer branch does not accept a sign.
func scanNumber(s string) (string, bool) {
	if n := scanFraction(s); n > 0 {
		return s[:n], true
	}
	if n := countDigits(s); n > 0 {
		return s[:n], true
	}
	return "", false
}

// scanDecimal reads [-+]?digits*.digits+ at the start of s.
func scanDecimal(s string) (string, bool) {
	if n := scanFraction(s); n > 0 {
		return s[:n], true
	}
	return "", false
}

// scanFraction returns the length of a [-+]?digits*.digits+ prefix, or 0.
// "1.2.3" reads "1.2" and "5." reads nothing.
func scanFraction(s string) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	i += countDigits(s[i:])
	if i >= len(s) || s[i] != '.' {
		return 0
	}
	frac := countDigits(s[i+1:])
	if frac == 0 {
		return 0
	}
	return i + 1 + frac
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

// skipSpace drops leading ASCII whitespace.
func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t\r\n\v\f")
}

// numberAfter finds the first occurrence of label followed by optional
// whitespace and a token accepted by scan, and returns its value.
func numberAfter(line, label string, scan func(string) (string, bool)) (float64, bool) {
	rest := line
	for {
		idx := strings.Index(rest, label)
		if idx < 0 {
			return 0, false
		}
		rest = rest[idx+len(label):]
		if tok, ok := scan(skipSpace(rest)); ok {
			v, err := strconv.ParseFloat(tok, 64)
			if err == nil {
				return v, true
			}
		}
	}
}
