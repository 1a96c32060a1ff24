package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Upstream
	out.Upstream = cfg.Upstream
	redact(&out.Upstream.APIKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Archive
	out.Archive = cfg.Archive
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	return out
}

// redact replaces a non-empty string with the placeholder.
func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
