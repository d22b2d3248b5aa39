package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

var isGCP = os.Getenv("GOOGLE_CLOUD_PROJECT") != ""

// getSecret retrieves the value of a secret from Google Cloud Secret Manager or environment variables.
func getSecret(key string) (string, error) {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID != "" {
		return accessSecretVersion(fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, key))
	}

	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("environment variable %q not set", key)
	}
	return value, nil
}

// getRequiredSecret is a helper func to get a required secret or fatal log on error.
func getRequiredSecret(key string) string {
	val, err := getSecret(key)
	if err != nil {
		log.Fatalf("FATAL: Cannot get required secret %q: %v", key, err)
	}
	if val == "" {
		log.Fatalf("FATAL: Required secret %q is empty", key)
	}
	return val
}

// getOptionalSecret is a helper func to get an optional secret with a default value.
func getOptionalSecret(key, defaultValue string) string {
	val, err := getSecret(key)
	if err != nil || val == "" {
		return defaultValue
	}
	return val
}

// parseOptionalInt parses an integer secret, falling back to the default on
// absence or malformed input.
func parseOptionalInt(key string, defaultValue int) int {
	valStr := getOptionalSecret(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Fatalf("FATAL: Invalid integer value for secret %q: %v", key, err)
	}
	return val
}

// parseOptionalDuration parses a duration secret (e.g. "15s", "1h"), falling
// back to the default when unset.
func parseOptionalDuration(key string, defaultValue time.Duration) time.Duration {
	valStr := getOptionalSecret(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		log.Fatalf("FATAL: Invalid duration value for secret %q (e.g. '15s'): %v", key, err)
	}
	return val
}
