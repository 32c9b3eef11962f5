// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks personal and financial data in production
// ============================================================================
// Everything goes through log/slog. In production the handler rewrites every
// string attribute through the masking patterns below.
// ============================================================================

package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction switches masking on.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"
)

// ParseLogLevel maps LOG_LEVEL values (DEBUG, INFO, WARN, ERROR) to slog levels.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. Production gets JSON and masking,
// development gets the text handler untouched.
func NewLogger(w io.Writer, level slog.Level, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if production {
		opts.ReplaceAttr = maskAttr
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetupLogging installs the process logger as the slog default.
func SetupLogging(level string, production bool) *slog.Logger {
	IsProduction = production
	logger := NewLogger(os.Stdout, ParseLogLevel(level), production)
	slog.SetDefault(logger)
	return logger
}

func maskAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.MessageKey {
		a.Value = slog.StringValue(maskString(a.Value.String()))
		return a
	}
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(maskString(a.Value.String()))
	}
	return a
}

// ============================================================================
// MASKING PATTERNS
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Amounts written with a currency marker.
	amountWithCurrencyRegex = regexp.MustCompile(`(R\$|BRL|€|EUR|USD|\$)\s*\d[\d.]*(,\d{1,2})?`)

	cardRegex = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)

	cpfRegex = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

	// Bearer tokens and JWTs.
	tokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
)

// ============================================================================
// MASKING
// ============================================================================

func maskString(s string) string {
	result := tokenRegex.ReplaceAllString(s, "***token***")
	result = emailRegex.ReplaceAllString(result, "***@***.***")
	result = cardRegex.ReplaceAllString(result, "****-****-****-****")
	result = cpfRegex.ReplaceAllString(result, "***.***.***-**")
	result = amountWithCurrencyRegex.ReplaceAllString(result, "R$ ***")
	result = uuidRegex.ReplaceAllStringFunc(result, shortID)
	return result
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return "***"
}

// MaskID keeps the first 8 characters of an id in production.
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	return shortID(id)
}

// MaskEmail hides an email address in production.
func MaskEmail(email string) string {
	if !IsProduction {
		return email
	}
	return "***@***.***"
}

// ============================================================================
// DOMAIN LOGGING
// ============================================================================

// LogAuthAction records a login, signup or token event.
func LogAuthAction(action string, email string, success bool) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "auth", "component", "auth", "action", action, "email", MaskEmail(email), "success", success)
}

// LogDataAction records a mutation on a user's data without amounts.
func LogDataAction(entity string, action string, entityID string, userID string) {
	slog.Info("data", "component", entity, "action", action, "entity_id", MaskID(entityID), "user_id", MaskID(userID))
}

// LogWebSocket records websocket session events.
func LogWebSocket(action string, userID string) {
	slog.Debug("ws", "component", "ws", "action", action, "user_id", MaskID(userID))
}

// ============================================================================
// UTILITIES
// ============================================================================

// GetEnvMode returns "production" or "development".
func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

// LogStartup prints the startup banner.
func LogStartup(appName string, version string, port string) {
	slog.Info(fmt.Sprintf("%s v%s starting", appName, version), "mode", GetEnvMode(), "port", port)
	if IsProduction {
		slog.Info("production mode: sensitive data will be masked in logs")
	}
}
