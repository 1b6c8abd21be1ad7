package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func verifySetLevels(registry *Registry, expectedMatches map[string]string) bool {
	for name, level := range expectedMatches {
		logger, ok := registry.LoggerNamed(name)
		if !ok || !strings.EqualFold(level, logger.GetLevel().String()) {
			return false
		}
	}
	return true
}

func createTestRegistry(loggerNames []string) *Registry {
	registry := NewRegistry(INFO)
	for _, name := range loggerNames {
		registry.getOrRegister(name, NewLogger(name))
	}
	return registry
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	type testCfg struct {
		pattern string
		isValid bool
	}

	tests := []testCfg{
		{"follower.health", true},
		{"follower.health.*", true},
		{"follower.*.web", true},
		{"follower.*.*", true},
		{"*.health", true},
		{"*", true},

		{"follower..health", false},
		{"follower.health.", false},
		{".follower.health", false},
		{"follower.health.**", false},
		{"follower.**.health", false},
		{"_.follower.health", false},
		{"-.follower", false},
		{"follower.-", false},
		{"follower._.health", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.pattern, func(t *testing.T) {
			t.Parallel()
			test.That(t, ValidatePattern(tc.pattern), test.ShouldEqual, tc.isValid)
		})
	}
}

func TestUpdateLoggerRegistry(t *testing.T) {
	type testCfg struct {
		loggerConfig    []LoggerPatternConfig
		loggerNames     []string
		expectedMatches map[string]string
	}

	tests := []testCfg{
		{
			loggerConfig: []LoggerPatternConfig{{Pattern: "follower.health", Level: "WARN"}},
			loggerNames:  []string{"follower.health", "follower.health.pose", "follower.web"},
			expectedMatches: map[string]string{
				"follower.health":      "WARN",
				"follower.health.pose": "INFO",
				"follower.web":         "INFO",
			},
		},
		{
			loggerConfig: []LoggerPatternConfig{{Pattern: "follower.*", Level: "DEBUG"}},
			loggerNames:  []string{"follower.health", "follower.web.goals", "telemetry"},
			expectedMatches: map[string]string{
				"follower.health":    "DEBUG",
				"follower.web.goals": "DEBUG",
				"telemetry":          "INFO",
			},
		},
		{
			loggerConfig: []LoggerPatternConfig{
				{Pattern: "follower.*", Level: "DEBUG"},
				{Pattern: "follower.health", Level: "WARN"},
			},
			loggerNames: []string{"follower.health"},
			expectedMatches: map[string]string{
				"follower.health": "WARN",
			},
		},
		{
			loggerConfig: []LoggerPatternConfig{{Pattern: "_.*.health", Level: "DEBUG"}},
			loggerNames:  []string{"follower.health"},
			expectedMatches: map[string]string{
				"follower.health": "INFO",
			},
		},
		{
			loggerConfig: []LoggerPatternConfig{{Pattern: "a.b", Level: "DEBUG"}},
			loggerNames:  []string{"a.b.c"},
			expectedMatches: map[string]string{
				"a.b.c": "INFO",
			},
		},
	}

	for _, tc := range tests {
		testRegistry := createTestRegistry(tc.loggerNames)

		err := testRegistry.Update(tc.loggerConfig, NewLogger("error-logger"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, verifySetLevels(testRegistry, tc.expectedMatches), test.ShouldBeTrue)
	}
}

func TestRegistrySublogger(t *testing.T) {
	registry := NewRegistry(INFO)
	err := registry.Update([]LoggerPatternConfig{{Pattern: "follower.*", Level: "debug"}}, NewLogger("error-logger"))
	test.That(t, err, test.ShouldBeNil)

	root := NewLogger("follower")
	health := registry.Sublogger(root, "health")
	test.That(t, health.Name(), test.ShouldEqual, "follower.health")
	test.That(t, health.GetLevel(), test.ShouldEqual, DEBUG)
	test.That(t, registry.Sublogger(root, "health"), test.ShouldEqual, health)
	test.That(t, registry.Names(), test.ShouldResemble, []string{"follower.health"})

	err = registry.Update([]LoggerPatternConfig{{Pattern: "*", Level: "loud"}}, NewLogger("error-logger"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, health.GetLevel(), test.ShouldEqual, DEBUG)

	test.That(t, registry.Update(nil, NewLogger("error-logger")), test.ShouldBeNil)
	test.That(t, health.GetLevel(), test.ShouldEqual, INFO)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follower.log")
	appender := NewFileAppender(path)
	logger := NewBlankLogger("follower")
	logger.AddAppender(appender)
	logger.Infow("reached waypoint", "index", 2)
	test.That(t, appender.Close(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "INFO\tfollower\t")
	test.That(t, string(data), test.ShouldContainSubstring, `{"index":2}`)
}
