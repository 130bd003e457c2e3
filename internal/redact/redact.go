package redact

import (
	"regexp"
	"unicode/utf8"
)

const placeholder = "[REDACTED]"

// MaxSnippet is the longest snippet, in runes, that Snippet returns.
const MaxSnippet = 160

type rule struct {
	name string
	re   *regexp.Regexp
}

var rules = []rule{
	{"api key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws secret key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"assigned secret", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"github token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"gitlab token", regexp.MustCompile(`gl(pat|dt|rt|ft)-[A-Za-z0-9_-]{20,}`)},
	{"slack token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"connection string", regexp.MustCompile(`(?i)\b[a-z][a-z0-9+]*://[^\s:/@]+:[^\s@/]+@`)},
	{"hex secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllLiteralString(text, placeholder)
	}
	return text
}

// Detect returns the names of the secret rules that match text, in rule
// order.
func Detect(text string) []string {
	var names []string
	for _, r := range rules {
		if r.re.MatchString(text) {
			names = append(names, r.name)
		}
	}
	return names
}

// Snippet prepares a source line for display in a posted comment: secrets
// are redacted and the result is cut to MaxSnippet runes.
func Snippet(line string) string {
	s := Secrets(line)
	if utf8.RuneCountInString(s) <= MaxSnippet {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSnippet-1]) + "…"
}
