package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries every secret and setting the service needs, resolved once
// at startup and passed into constructors. Nothing reads the environment
// after Load returns.
type Config struct {
	ListenAddr string

	// External tabular store.
	StoreAPIKey  string
	StoreBaseID  string
	StoreBaseURL string // empty means the store's public endpoint

	// Logical table ids. Only the tasks table is required; the adapter
	// falls back to it for unresolved names.
	TasksTable    string
	ProjectsTable string
	GroupsTable   string
	EventsTable   string
	CounterTable  string

	// Object store bucket holding public uploads.
	ObjectEndpoint  string
	ObjectAccessKey string
	ObjectSecretKey string
	ObjectBucket    string
	ObjectSecure    bool

	// Redis backing chat fan-out and publish dedup.
	RedisConnection string

	// Abuse scoring. Empty secret disables verification.
	CaptchaSecret    string
	CaptchaVerifyURL string
}

// Load builds a Config from the environment. A missing required value is an
// error; callers terminate the process rather than serve degraded traffic.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       ":8080",
		StoreAPIKey:      os.Getenv("STORE_API_KEY"),
		StoreBaseID:      os.Getenv("STORE_BASE_ID"),
		StoreBaseURL:     os.Getenv("STORE_BASE_URL"),
		TasksTable:       os.Getenv("TASKS_TABLE"),
		ProjectsTable:    os.Getenv("PROJECTS_TABLE"),
		GroupsTable:      os.Getenv("GROUPS_TABLE"),
		EventsTable:      os.Getenv("EVENTS_TABLE"),
		CounterTable:     os.Getenv("COUNTER_TABLE"),
		ObjectEndpoint:   os.Getenv("OBJECT_STORE_ENDPOINT"),
		ObjectAccessKey:  os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		ObjectSecretKey:  os.Getenv("OBJECT_STORE_SECRET_KEY"),
		ObjectBucket:     os.Getenv("OBJECT_STORE_BUCKET"),
		ObjectSecure:     true,
		RedisConnection:  os.Getenv("REDIS_CONNECTION_STRING"),
		CaptchaSecret:    os.Getenv("CAPTCHA_SECRET"),
		CaptchaVerifyURL: os.Getenv("CAPTCHA_VERIFY_URL"),
	}

	if v, ok := os.LookupEnv("PORT"); ok {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("OBJECT_STORE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OBJECT_STORE_SECURE: %w", err)
		}
		cfg.ObjectSecure = secure
	}

	required := []struct {
		name  string
		value string
	}{
		{"STORE_API_KEY", cfg.StoreAPIKey},
		{"STORE_BASE_ID", cfg.StoreBaseID},
		{"TASKS_TABLE", cfg.TasksTable},
		{"OBJECT_STORE_ENDPOINT", cfg.ObjectEndpoint},
		{"OBJECT_STORE_ACCESS_KEY", cfg.ObjectAccessKey},
		{"OBJECT_STORE_SECRET_KEY", cfg.ObjectSecretKey},
		{"OBJECT_STORE_BUCKET", cfg.ObjectBucket},
		{"REDIS_CONNECTION_STRING", cfg.RedisConnection},
	}
	for _, req := range required {
		if req.value == "" {
			return Config{}, fmt.Errorf("missing required config %s", req.name)
		}
	}
	return cfg, nil
}
