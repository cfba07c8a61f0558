package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# ECOS Terminal Configuration

[api]
# Base URL of the stock dashboard backend
base_url = "http://localhost:8000"
# Per-request timeout
timeout = "15s"
# Requests per second sent to the backend (0 = unlimited)
rate_limit = 10.0
rate_burst = 20

[paging]
# Stocks requested per page (15-100)
page_size = 20

[presence]
# Heartbeat cadence (5s-30s)
heartbeat_interval = "10s"
# Online roster refresh cadence (5s-10s)
roster_interval = "5s"

[search]
# Quiet period before a suggestion query is sent
debounce = "300ms"
# Shortest query that triggers a suggestion request
min_query_length = 2

[tracking]
# Maximum number of tracked symbols kept per user
max_symbols = 20
# Exchange suffixes stripped when normalizing a symbol
exchange_suffixes = [".IS"]

[breaker]
# Consecutive polling failures before the breaker opens
failure_threshold = 5
# Successes in half-open state before it closes again
success_threshold = 1
# Time the breaker stays open
timeout = "30s"

[log]
# debug, info, warn, error
level = "info"
console = true
file = true

[store]
# Preference database (default: <config dir>/ecos.db)
path = ""
`

// writeTemplateConfig writes the commented template when no config file
// exists. Loading continues with defaults either way.
func writeTemplateConfig(configDir, name string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}

	return path, nil
}
