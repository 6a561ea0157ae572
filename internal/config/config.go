package config

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tdopierre/book-better-activities/internal/booking"
	"github.com/tdopierre/book-better-activities/internal/crypto"
	"github.com/tdopierre/book-better-activities/internal/schedule"
)

// EncKeyEnv names the environment variable holding the base64 AES key used
// for "enc:" values. Generate one with the keys command.
const EncKeyEnv = "BOOKBETTER_ENC_KEY"

const encPrefix = "enc:"

// Config is the fully validated application configuration. Jobs are built
// once at load time and never mutated afterwards.
type Config struct {
	Timezone    string
	DatabaseURL string
	Jobs        []Job
}

// Job is one scheduled booking: a cron expression, how many days ahead of
// each firing to book, and a priority-ordered attempt list.
type Job struct {
	Name       string
	Schedule   string
	DaysAhead  int
	WebhookURL string
	Attempts   []booking.Attempt
}

type rawConfig struct {
	Timezone    string   `yaml:"timezone"`
	DatabaseURL string   `yaml:"database_url"`
	Bookings    []rawJob `yaml:"bookings"`
}

type rawJob struct {
	Name              string       `yaml:"name"`
	Schedule          string       `yaml:"schedule"`
	DaysAhead         int          `yaml:"days_ahead"`
	DiscordWebhookURL string       `yaml:"discord_webhook_url"`
	Attempts          []rawAttempt `yaml:"attempts"`
}

type rawAttempt struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Venue       string `yaml:"venue"`
	Activity    string `yaml:"activity"`
	MinSlotTime string `yaml:"min_slot_time"`
	MaxSlotTime string `yaml:"max_slot_time"`
	NSlots      int    `yaml:"n_slots"`
}

// Load reads, interpolates, decrypts and validates a YAML config file.
// Unknown keys and missing required fields are rejected here, before
// anything is scheduled.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	expanded, err := expandEnv(string(b))
	if err != nil {
		return Config{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	var raw rawConfig
	if err := dec.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	aead, err := loadAEAD()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Timezone: raw.Timezone, DatabaseURL: raw.DatabaseURL}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/London"
	}
	if cfg.DatabaseURL, err = reveal(aead, cfg.DatabaseURL); err != nil {
		return Config{}, fmt.Errorf("database_url: %w", err)
	}

	names := make(map[string]struct{}, len(raw.Bookings))
	for i, rj := range raw.Bookings {
		job, err := buildJob(rj, aead)
		if err != nil {
			return Config{}, fmt.Errorf("bookings[%d]: %w", i, err)
		}
		if _, dup := names[job.Name]; dup {
			return Config{}, fmt.Errorf("bookings[%d]: duplicate job name %q", i, job.Name)
		}
		names[job.Name] = struct{}{}
		cfg.Jobs = append(cfg.Jobs, job)
	}
	return cfg, nil
}

func buildJob(rj rawJob, aead *crypto.AEAD) (Job, error) {
	if rj.Name == "" {
		return Job{}, fmt.Errorf("name is required")
	}
	if rj.Schedule == "" {
		return Job{}, fmt.Errorf("schedule is required")
	}
	if _, err := schedule.ParseCronExpression(rj.Schedule); err != nil {
		return Job{}, err
	}
	if rj.DaysAhead < 0 {
		return Job{}, fmt.Errorf("days_ahead must be >= 0")
	}
	if len(rj.Attempts) == 0 {
		return Job{}, fmt.Errorf("at least one attempt is required")
	}

	webhook, err := reveal(aead, rj.DiscordWebhookURL)
	if err != nil {
		return Job{}, fmt.Errorf("discord_webhook_url: %w", err)
	}

	job := Job{
		Name:       rj.Name,
		Schedule:   rj.Schedule,
		DaysAhead:  rj.DaysAhead,
		WebhookURL: webhook,
	}
	for i, ra := range rj.Attempts {
		a, err := buildAttempt(ra, aead)
		if err != nil {
			return Job{}, fmt.Errorf("attempts[%d]: %w", i, err)
		}
		job.Attempts = append(job.Attempts, a)
	}
	return job, nil
}

func buildAttempt(ra rawAttempt, aead *crypto.AEAD) (booking.Attempt, error) {
	var zero booking.Attempt
	if ra.Username == "" || ra.Password == "" {
		return zero, fmt.Errorf("username and password are required")
	}
	if ra.Venue == "" || ra.Activity == "" {
		return zero, fmt.Errorf("venue and activity are required")
	}
	if ra.MinSlotTime == "" {
		return zero, fmt.Errorf("min_slot_time is required")
	}
	if ra.NSlots < 1 {
		return zero, fmt.Errorf("n_slots must be >= 1")
	}

	password, err := reveal(aead, ra.Password)
	if err != nil {
		return zero, fmt.Errorf("password: %w", err)
	}
	min, err := booking.ParseClock(ra.MinSlotTime)
	if err != nil {
		return zero, fmt.Errorf("min_slot_time: %w", err)
	}
	a := booking.Attempt{
		Username: ra.Username,
		Password: password,
		Venue:    ra.Venue,
		Activity: ra.Activity,
		MinTime:  min,
		NSlots:   ra.NSlots,
	}
	if ra.MaxSlotTime != "" {
		max, err := booking.ParseClock(ra.MaxSlotTime)
		if err != nil {
			return zero, fmt.Errorf("max_slot_time: %w", err)
		}
		if max <= min {
			return zero, fmt.Errorf("max_slot_time %s must be after min_slot_time %s", max, min)
		}
		a.MaxTime = &max
	}
	return a, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references. A reference
// to an unset variable without a default is an error rather than a silent
// empty string.
func expandEnv(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(name string) string {
		key, def, hasDef := strings.Cut(name, ":-")
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		if hasDef {
			return def
		}
		missing = append(missing, key)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable(s) not set: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func loadAEAD() (*crypto.AEAD, error) {
	v := strings.TrimSpace(os.Getenv(EncKeyEnv))
	if v == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EncKeyEnv, err)
	}
	aead, err := crypto.New(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EncKeyEnv, err)
	}
	return aead, nil
}

// reveal decrypts "enc:" values; everything else passes through.
func reveal(aead *crypto.AEAD, v string) (string, error) {
	if !strings.HasPrefix(v, encPrefix) {
		return v, nil
	}
	if aead == nil {
		return "", fmt.Errorf("encrypted value present but %s is not set", EncKeyEnv)
	}
	return aead.DecryptString(strings.TrimPrefix(v, encPrefix))
}
