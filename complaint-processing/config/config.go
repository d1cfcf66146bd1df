// Package config loads the settings shared by the worker and the starter.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// .env file and the process environment. Environment names map onto keys by
// splitting on the first underscore, so TASKS_MAX_RETRIES sets
// tasks.max_retries.
package config

import (
	"time"
)

type Config struct {
	API      APIConfig      `koanf:"api"      validate:"required"`
	Tasks    TasksConfig    `koanf:"tasks"    validate:"required"`
	Temporal TemporalConfig `koanf:"temporal" validate:"required"`
	Caller   CallerConfig   `koanf:"caller"   validate:"required"`
	Notify   NotifyConfig   `koanf:"notify"`
	Report   ReportConfig   `koanf:"report"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// APIConfig points at the customer-service backend
type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"gt=0"`
}

// TasksConfig is the task queue surface
type TasksConfig struct {
	BrokerURL     string        `koanf:"broker_url"     validate:"required"`
	ResultBackend string        `koanf:"result_backend"`
	Serializer    string        `koanf:"serializer"     validate:"oneof=json"`
	TimeLimit     time.Duration `koanf:"time_limit"     validate:"gt=0"`
	AcksLate      bool          `koanf:"acks_late"`
	Concurrency   int           `koanf:"concurrency"    validate:"min=1,max=128"`
	MaxRetries    int           `koanf:"max_retries"    validate:"min=1"`
	RetryDelay    time.Duration `koanf:"retry_delay"    validate:"gt=0"`
	ResultTTL     time.Duration `koanf:"result_ttl"     validate:"gt=0"`
	QueueName     string        `koanf:"queue_name"     validate:"required"`
}

// TemporalConfig is used when the broker URL has the temporal:// scheme
type TemporalConfig struct {
	Namespace string `koanf:"namespace"  validate:"required"`
	TaskQueue string `koanf:"task_queue" validate:"required"`
}

// CallerConfig bounds how long a synchronous caller waits for a task result
type CallerConfig struct {
	WaitTimeout time.Duration `koanf:"wait_timeout" validate:"gt=0"`
}

// NotifyConfig controls the simulated notification channel
type NotifyConfig struct {
	Delay time.Duration `koanf:"delay" validate:"gte=0"`
}

// ReportConfig schedules generate_daily_report on the worker
type ReportConfig struct {
	Schedule string `koanf:"schedule"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Tasks: TasksConfig{
			BrokerURL:     "redis://localhost:6379/0",
			ResultBackend: "",
			Serializer:    "json",
			TimeLimit:     600 * time.Second,
			AcksLate:      false,
			Concurrency:   2,
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
			ResultTTL:     24 * time.Hour,
			QueueName:     "complaint-tasks",
		},
		Temporal: TemporalConfig{
			Namespace: "default",
			TaskQueue: "complaint-task-queue",
		},
		Caller: CallerConfig{
			WaitTimeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			Delay: 2 * time.Second,
		},
		Report: ReportConfig{
			Schedule: "@daily",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// ResultBackendURL falls back to the broker URL when no separate result store is set
func (c *TasksConfig) ResultBackendURL() string {
	if c.ResultBackend == "" {
		return c.BrokerURL
	}
	return c.ResultBackend
}
