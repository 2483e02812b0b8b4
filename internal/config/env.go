package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ApplyEnv overlays MOOS_* and LOG_LEVEL environment variables onto c.
func ApplyEnv(c *Config, logger zerolog.Logger) {
	c.App.Name = parseString(logger, "MOOS_APP_NAME", c.App.Name)
	c.App.Mission = parseString(logger, "MOOS_MISSION", c.App.Mission)
	if raw, ok := os.LookupEnv("MOOS_SUBSCRIPTIONS"); ok {
		c.App.Subscriptions = splitList(raw)
		logger.Debug().Str("key", "MOOS_SUBSCRIPTIONS").Strs("value", c.App.Subscriptions).Msg("using environment variable")
	}
	c.App.RefreshInterval = parseFloat(logger, "MOOS_REFRESH_INTERVAL", c.App.RefreshInterval)
	c.Engine.Transport = parseString(logger, "MOOS_TRANSPORT", c.Engine.Transport)
	c.Status.ListenAddr = parseString(logger, "MOOS_STATUS_ADDR", c.Status.ListenAddr)
	c.Log.Level = parseString(logger, "LOG_LEVEL", c.Log.Level)
}

func parseString(logger zerolog.Logger, key, current string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return current
	}
	logger.Debug().Str("key", key).Str("value", value).Str("source", "environment").Msg("using environment variable")
	return value
}

func parseFloat(logger zerolog.Logger, key string, current float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return current
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", value).Err(err).Msg("invalid float, keeping current value")
		return current
	}
	logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
