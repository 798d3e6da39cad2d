package instance

import "os"

// ID names the running process in logs. Heroku's DYNO wins over WORKER_ID,
// then the hostname, then fallback.
func ID(fallback string) string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
