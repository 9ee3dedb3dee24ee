package config

import (
	"net/url"
	"slices"
	"strings"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Secrets become
// "***"; a Postgres DSN keeps its host and database but loses the password.
// Slices are copied so the result shares no mutable state with cfg.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	for _, s := range []*string{
		&out.Wallet.Seed,
		&out.Wallet.KeyPassword,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Server.HMACSecret,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	out.Postgres.DSN = redactDSN(cfg.Postgres.DSN)

	out.Engine.Operators = slices.Clone(cfg.Engine.Operators)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

// redactDSN masks the password of a URL-form DSN. Key/value DSNs are masked
// whole.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return redacted
	}
	if u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	// url.Redacted masks with "xxxxx".
	return strings.Replace(u.Redacted(), ":xxxxx@", ":"+redacted+"@", 1)
}
