package helper

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the given .env files.
// Without arguments it loads ./.env. A missing file is not an error.
func LoadEnv(filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		slog.Debug("No .env file found, using system environment variables")
	}
}

// GetEnvString returns the value of key or defaultValue if it is unset
func GetEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetEnvInt returns the integer value of key or defaultValue if it is unset or not a number
func GetEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	returnValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return returnValue
}

// GetEnvBool returns the boolean value of key or defaultValue if it is unset or invalid
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	returnValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return returnValue
}

// GetEnvList returns the comma separated values of key or defaultValue if it is unset
func GetEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
