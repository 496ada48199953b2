package logging

import (
	"fmt"
	"strings"
)

var secretKeys = map[string]bool{
	"api_key":            true,
	"apikey":             true,
	"authorization":      true,
	"nextgen_api_key":    true,
	"telegram_bot_token": true,
	"token":              true,
	"secret":             true,
}

func RedactValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "bearer ") {
		return "Bearer " + mask(trimmed[7:])
	}
	return mask(trimmed)
}

// RedactArgs copies tool arguments, masking secret-looking keys and
// shortening long text values.
func RedactArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for key, val := range args {
		if isSecretKey(key) {
			out[key] = RedactValue(fmt.Sprint(val))
			continue
		}
		if s, ok := val.(string); ok {
			out[key] = Truncate(s, 80)
			continue
		}
		out[key] = val
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	return secretKeys[lower]
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
