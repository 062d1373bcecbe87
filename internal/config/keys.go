package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// Env names of the deployed bot are kept as-is; newer keys use TACHORA_*.
var specs = []keySpec{
	{
		key: "access.allowed_users", typ: kString, env: "ALLOWED_USERS",
		apply:   func(cfg *Config, v any) { cfg.Access.AllowedUsers = v.(string) },
		extract: func(cfg Config) any { return cfg.Access.AllowedUsers },
	},
	{
		key: "discord.token", typ: kString, env: "PROJO_DISCORD_BOT",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Discord.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Discord.Token },
	},
	{
		key: "discord.max_attachment_bytes", typ: kInt, env: "TACHORA_MAX_ATTACHMENT_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Discord.MaxAttachmentBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Discord.MaxAttachmentBytes },
	},
	{
		key: "blob.backend", typ: kString, env: "TACHORA_BLOB_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Blob.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Backend },
	},
	{
		key: "blob.connection_string", typ: kString, env: "AZURE_CONNECTION_STRING",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Blob.ConnectionString = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.ConnectionString },
	},
	{
		key: "blob.container", typ: kString, env: "AZURE_CONTAINER_NAME",
		apply:   func(cfg *Config, v any) { cfg.Blob.Container = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Container },
	},
	{
		key: "blob.dir", typ: kString, env: "TACHORA_BLOB_DIR",
		apply:   func(cfg *Config, v any) { cfg.Blob.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Dir },
	},
	{
		key: "blob.base_url", typ: kString, env: "TACHORA_BLOB_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Blob.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.BaseURL },
	},
	{
		key: "metadata.backend", typ: kString, env: "TACHORA_METADATA_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Metadata.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.Backend },
	},
	{
		key: "metadata.endpoint", typ: kString, env: "COSMOS_URI",
		apply:   func(cfg *Config, v any) { cfg.Metadata.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.Endpoint },
	},
	{
		key: "metadata.key", typ: kString, env: "COSMOS_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Metadata.Key = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.Key },
	},
	{
		key: "metadata.database", typ: kString, env: "COSMOS_DB",
		apply:   func(cfg *Config, v any) { cfg.Metadata.Database = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.Database },
	},
	{
		key: "metadata.container", typ: kString, env: "COSMOS_CONTAINER",
		apply:   func(cfg *Config, v any) { cfg.Metadata.Container = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.Container },
	},
	{
		key: "metadata.partition_key", typ: kString, env: "TACHORA_COSMOS_PARTITION_KEY",
		apply:   func(cfg *Config, v any) { cfg.Metadata.PartitionKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Metadata.PartitionKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TACHORA_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "TACHORA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "TACHORA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func envFor(key string) string {
	for _, s := range specs {
		if s.key == key {
			return s.env
		}
	}
	return ""
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config, env envLookup) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := env(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
