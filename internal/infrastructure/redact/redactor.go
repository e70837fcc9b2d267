package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

// Level controls how much conversation text reaches the logs.
type Level string

const (
	// LevelNone replaces all text with a placeholder.
	LevelNone Level = "none"
	// LevelHashed keeps text but hashes detected PII with a salt.
	LevelHashed Level = "hashed"
	// LevelFull logs text unchanged.
	LevelFull Level = "full"
)

const redacted = "[REDACTED]"

// ParseLevel maps a config value to a Level. Unknown values give LevelHashed.
func ParseLevel(raw string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelNone:
		return LevelNone
	case LevelFull:
		return LevelFull
	default:
		return LevelHashed
	}
}

type rule struct {
	label   string
	pattern *regexp.Regexp
	// hashed rules keep a salted fingerprint; the rest are fully masked.
	hashed bool
}

// Redactor scrubs user and assistant text before logging.
type Redactor struct {
	level  Level
	salt   string
	maxLen int
	rules  []rule
}

// New creates a Redactor. salt keeps hashes stable per deployment. Texts
// longer than maxLen runes are truncated after scrubbing; zero disables it.
func New(level Level, salt string, maxLen int) *Redactor {
	return &Redactor{
		level:  level,
		salt:   salt,
		maxLen: maxLen,
		rules: []rule{
			{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), true},
			{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), false},
			{"CC", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`), false},
			{"PHONE", regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`), true},
			{"IP", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), true},
			{"IP", regexp.MustCompile(`\b(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}\b`), true},
		},
	}
}

// SanitizePrompt scrubs a user message.
func (r *Redactor) SanitizePrompt(input string) string {
	return r.sanitize(input)
}

// SanitizeResponse scrubs an assistant reply.
func (r *Redactor) SanitizeResponse(response string) string {
	return r.sanitize(response)
}

func (r *Redactor) sanitize(text string) string {
	switch r.level {
	case LevelNone:
		return redacted
	case LevelFull:
		return r.truncate(text)
	default:
		return r.truncate(r.maskPII(text))
	}
}

func (r *Redactor) maskPII(text string) string {
	for _, rl := range r.rules {
		rl := rl
		text = rl.pattern.ReplaceAllStringFunc(text, func(match string) string {
			if !rl.hashed {
				return fmt.Sprintf("[%s:REDACTED]", rl.label)
			}
			return fmt.Sprintf("[%s:%s]", rl.label, r.hash(match))
		})
	}
	return text
}

func (r *Redactor) truncate(text string) string {
	if r.maxLen <= 0 || utf8.RuneCountInString(text) <= r.maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:r.maxLen]) + "…"
}

func (r *Redactor) hash(data string) string {
	sum := sha256.Sum256([]byte(data + r.salt))
	return hex.EncodeToString(sum[:])[:8]
}

var _ conversation.Redactor = (*Redactor)(nil)
