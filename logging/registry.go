package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. A pattern is a
// dotted logger name where any section may be `*`, e.g. "follower.*".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Level   string `json:"level" yaml:"level"`
}

const (
	// e.g. "foo".
	validLoggerSectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "foo" or "*".
	validLoggerSectionNameWithWildcard = `(` + validLoggerSectionName + `|\*)`
	// e.g. "foo.*.foo".
	validLoggerSectionsWithWildcard = validLoggerSectionNameWithWildcard + `(\.` + validLoggerSectionNameWithWildcard + `)*`
	validLoggerName                 = `^` + validLoggerSectionsWithWildcard + `$`
)

var loggerPatternRegexp = regexp.MustCompile(validLoggerName)

// ValidatePattern reports whether pattern is a well formed logger pattern.
func ValidatePattern(pattern string) bool {
	return loggerPatternRegexp.MatchString(pattern)
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}

// Registry tracks named loggers so their levels can be set from configuration.
type Registry struct {
	mu           sync.RWMutex
	loggers      map[string]Logger
	logConfig    []LoggerPatternConfig
	defaultLevel Level
}

// NewRegistry returns an empty registry. Loggers not matched by any pattern are reset to
// defaultLevel on Update.
func NewRegistry(defaultLevel Level) *Registry {
	return &Registry{
		loggers:      make(map[string]Logger),
		defaultLevel: defaultLevel,
	}
}

// Sublogger creates a sublogger of parent, registers it under its full name and applies the
// current patterns to it.
func (lr *Registry) Sublogger(parent Logger, subname string) Logger {
	logger := parent.Sublogger(subname)
	return lr.getOrRegister(logger.Name(), logger)
}

// getOrRegister returns the logger already registered under name, or registers logger. Racing
// callers all get the winner's logger.
func (lr *Registry) getOrRegister(name string, logger Logger) Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if existing, ok := lr.loggers[name]; ok {
		return existing
	}
	lr.loggers[name] = logger
	if level, ok := levelFor(lr.logConfig, name); ok {
		logger.SetLevel(level)
	}
	return logger
}

// LoggerNamed returns the logger registered under name.
func (lr *Registry) LoggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

// Names returns the sorted names of every registered logger.
func (lr *Registry) Names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// levelFor returns the level of the last pattern matching name. Invalid patterns never match.
func levelFor(logConfig []LoggerPatternConfig, name string) (Level, bool) {
	var (
		level Level
		found bool
	)
	for _, lpc := range logConfig {
		if !ValidatePattern(lpc.Pattern) {
			continue
		}
		r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil || !r.MatchString(name) {
			continue
		}
		parsed, err := LevelFromString(lpc.Level)
		if err != nil {
			continue
		}
		level, found = parsed, true
	}
	return level, found
}

// Update replaces the patterns and re-levels every registered logger. Later patterns win.
func (lr *Registry) Update(logConfig []LoggerPatternConfig, errorLogger Logger) error {
	for _, lpc := range logConfig {
		if !ValidatePattern(lpc.Pattern) {
			errorLogger.Warnw("failed to validate a pattern", "pattern", lpc.Pattern)
			continue
		}
		if _, err := LevelFromString(lpc.Level); err != nil {
			return fmt.Errorf("pattern %q: %w", lpc.Pattern, err)
		}
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.logConfig = logConfig
	for name, logger := range lr.loggers {
		level, ok := levelFor(logConfig, name)
		if !ok {
			level = lr.defaultLevel
		}
		logger.SetLevel(level)
	}
	return nil
}
