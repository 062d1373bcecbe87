package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Backend names.
const (
	BlobAzure = "azure"
	BlobDir   = "dir"

	MetadataCosmos = "cosmos"
	MetadataSQLite = "sqlite"
)

type Config struct {
	Access   AccessConfig
	Discord  DiscordConfig
	Blob     BlobConfig
	Metadata MetadataConfig
	Storage  StorageConfig
	Server   ServerConfig
	Log      LogConfig
}

type AccessConfig struct {
	// AllowedUsers is a comma-separated list of sender ids.
	AllowedUsers string
}

type DiscordConfig struct {
	Token              string
	MaxAttachmentBytes int
}

type BlobConfig struct {
	Backend          string
	ConnectionString string
	Container        string
	Dir              string
	BaseURL          string
}

type MetadataConfig struct {
	Backend      string
	Endpoint     string
	Key          string
	Database     string
	Container    string
	PartitionKey string
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Discord: DiscordConfig{
			MaxAttachmentBytes: 25 << 20,
		},
		Blob: BlobConfig{
			Backend: BlobAzure,
		},
		Metadata: MetadataConfig{
			Backend:      MetadataCosmos,
			PartitionKey: "user_id",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "tachora-data"
		}
	}
	return filepath.Join(dir, "tachora")
}

// Load reads configuration from the YAML config file, a .env file in the
// working directory, and environment variables, in increasing precedence.
//
// The config file lives at $XDG_CONFIG_HOME/tachora/config.yaml. Secrets
// (bot token, storage connection string, Cosmos key) are never read from it;
// they must come from the environment or .env.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), newEnvLookup(".env"))
}

// envLookup resolves environment variables, falling back to values parsed
// from a dotenv file. The process environment is not modified.
type envLookup func(key string) string

func newEnvLookup(dotenvPath string) envLookup {
	dotenv, err := godotenv.Read(dotenvPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read %s: %v. Ignoring it.\n", dotenvPath, err)
		}
		dotenv = nil
	}
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
}

func loadWith(b ConfigBackend, env envLookup) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg, env)

	if cfg.Blob.Backend == BlobDir && cfg.Blob.Dir == "" {
		cfg.Blob.Dir = filepath.Join(cfg.Storage.DataDir, "blobs")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	var missing []string
	require := func(value, key string) {
		if value == "" {
			missing = append(missing, key+" ("+envFor(key)+")")
		}
	}

	require(cfg.Discord.Token, "discord.token")

	switch cfg.Blob.Backend {
	case BlobAzure:
		require(cfg.Blob.ConnectionString, "blob.connection_string")
		require(cfg.Blob.Container, "blob.container")
	case BlobDir:
	default:
		return fmt.Errorf("invalid blob.backend %q: want %q or %q", cfg.Blob.Backend, BlobAzure, BlobDir)
	}

	switch cfg.Metadata.Backend {
	case MetadataCosmos:
		require(cfg.Metadata.Endpoint, "metadata.endpoint")
		require(cfg.Metadata.Key, "metadata.key")
		require(cfg.Metadata.Database, "metadata.database")
		require(cfg.Metadata.Container, "metadata.container")
	case MetadataSQLite:
	default:
		return fmt.Errorf("invalid metadata.backend %q: want %q or %q", cfg.Metadata.Backend, MetadataCosmos, MetadataSQLite)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
