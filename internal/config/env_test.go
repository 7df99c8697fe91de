package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openlot/escrowd/internal/config"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("ESCROWD_TEST_STR", "value")
	assert.Equal(t, "value", config.GetEnv("ESCROWD_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", config.GetEnv("ESCROWD_TEST_UNSET", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ESCROWD_TEST_INT", "42")
	assert.Equal(t, 42, config.GetEnvInt("ESCROWD_TEST_INT", 7))

	t.Setenv("ESCROWD_TEST_INT", "not-a-number")
	assert.Equal(t, 7, config.GetEnvInt("ESCROWD_TEST_INT", 7))

	assert.Equal(t, 7, config.GetEnvInt("ESCROWD_TEST_INT_UNSET", 7))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ESCROWD_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, config.GetEnvDuration("ESCROWD_TEST_DUR", time.Minute))

	t.Setenv("ESCROWD_TEST_DUR", "ninety")
	assert.Equal(t, time.Minute, config.GetEnvDuration("ESCROWD_TEST_DUR", time.Minute))
}
