// Package redaction masks secrets and personal data before they reach logs.
// Bot tokens, database encryption keys and phone numbers are the usual
// offenders in a chat client.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// RedactTokens masks bot tokens, bearer tokens and key=value secrets.
	RedactTokens bool `json:"redact_tokens" yaml:"redact_tokens"`

	// RedactPhoneNumbers masks international phone numbers.
	RedactPhoneNumbers bool `json:"redact_phone_numbers" yaml:"redact_phone_numbers"`

	// Secrets are literal values (for example the configured bot token) that
	// are always masked.
	Secrets []string `json:"-" yaml:"-"`

	Replacement string `json:"replacement" yaml:"replacement"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		RedactTokens:       true,
		RedactPhoneNumbers: true,
		Replacement:        "[REDACTED]",
	}
}

// Redactor applies a Config to strings and log fields.
type Redactor struct {
	config   Config
	tokens   []*regexp.Regexp
	phones   []*regexp.Regexp
	keyValue *regexp.Regexp
	mu       sync.RWMutex
}

var (
	botTokenPattern = regexp.MustCompile(`\b\d{6,12}:[A-Za-z0-9_-]{30,}\b`)
	bearerPattern   = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.]{20,}`)
	keyValuePattern = regexp.MustCompile(`(?i)(token|secret|password|encryption_key|api_hash)\s*[=:]\s*['"]?([^'"\s,}]{4,})['"]?`)
	phoneIntl       = regexp.MustCompile(`\+\d{1,3}[\s\-]?\d{1,4}[\s\-]?\d{1,4}[\s\-]?\d{1,9}`)
)

func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}
	return &Redactor{
		config:   config,
		tokens:   []*regexp.Regexp{botTokenPattern, bearerPattern},
		phones:   []*regexp.Regexp{phoneIntl},
		keyValue: keyValuePattern,
	}
}

// Redact applies all configured rules to input.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	result := input
	for _, s := range r.config.Secrets {
		if s != "" {
			result = strings.ReplaceAll(result, s, r.config.Replacement)
		}
	}

	if r.config.RedactTokens {
		for _, re := range r.tokens {
			result = re.ReplaceAllString(result, r.config.Replacement)
		}
		result = r.keyValue.ReplaceAllStringFunc(result, func(match string) string {
			sub := r.keyValue.FindStringSubmatch(match)
			if len(sub) < 3 {
				return match
			}
			return strings.Replace(match, sub[2], r.config.Replacement, 1)
		})
	}

	if r.config.RedactPhoneNumbers {
		for _, re := range r.phones {
			result = re.ReplaceAllString(result, r.config.Replacement)
		}
	}

	return result
}

// RedactFields returns a copy of fields with sensitive keys masked and string
// values passed through Redact.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	r.mu.RLock()
	enabled := r.config.Enabled
	replacement := r.config.Replacement
	r.mu.RUnlock()

	if !enabled || fields == nil {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(strings.ToLower(k)) {
			result[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = r.Redact(val)
		case map[string]any:
			result[k] = r.RedactFields(val)
		default:
			result[k] = v
		}
	}
	return result
}

func isSensitiveKey(key string) bool {
	for _, sk := range []string{"token", "secret", "password", "encryption_key", "api_hash", "phone"} {
		if strings.Contains(key, sk) {
			return true
		}
	}
	return false
}

// AddSecret masks an exact value from now on.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Secrets = append(r.config.Secrets, secret)
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

func current() *Redactor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor
}

// Redact applies the global redactor.
func Redact(input string) string {
	return current().Redact(input)
}

// RedactFields applies the global redactor to log fields.
func RedactFields(fields map[string]any) map[string]any {
	return current().RedactFields(fields)
}

// SetGlobalConfig replaces the global redactor.
func SetGlobalConfig(config Config) {
	r := NewRedactor(config)
	globalMu.Lock()
	globalRedactor = r
	globalMu.Unlock()
}

// AddGlobalSecret masks an exact value in every subsequent log line.
func AddGlobalSecret(secret string) {
	current().AddSecret(secret)
}
