package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend { return &memBackend{data: map[string]any{}} }

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key].(string)
	return v, ok, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key].(int)
	return v, ok, nil
}

func (m *memBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }
func (m *memBackend) Delete(key string) error          { delete(m.data, key); return nil }

func mapEnv(vars map[string]string) envLookup {
	return func(key string) string { return vars[key] }
}

func fullEnv() map[string]string {
	return map[string]string{
		"PROJO_DISCORD_BOT":       "tok",
		"AZURE_CONNECTION_STRING": "UseDevelopmentStorage=true",
		"AZURE_CONTAINER_NAME":    "notes",
		"COSMOS_URI":              "https://acct.documents.azure.com:443/",
		"COSMOS_KEY":              "a2V5",
		"COSMOS_DB":               "memory",
		"COSMOS_CONTAINER":        "notes",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend(), mapEnv(fullEnv()))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Blob.Backend != BlobAzure {
		t.Errorf("Blob.Backend = %q, want %q", cfg.Blob.Backend, BlobAzure)
	}
	if cfg.Metadata.Backend != MetadataCosmos {
		t.Errorf("Metadata.Backend = %q, want %q", cfg.Metadata.Backend, MetadataCosmos)
	}
	if cfg.Metadata.PartitionKey != "user_id" {
		t.Errorf("Metadata.PartitionKey = %q, want user_id", cfg.Metadata.PartitionKey)
	}
	if cfg.Discord.MaxAttachmentBytes != 25<<20 {
		t.Errorf("Discord.MaxAttachmentBytes = %d", cfg.Discord.MaxAttachmentBytes)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Access.AllowedUsers != "" {
		t.Errorf("Access.AllowedUsers = %q, want empty", cfg.Access.AllowedUsers)
	}
}

func TestLoad_EnvNames(t *testing.T) {
	env := fullEnv()
	env["ALLOWED_USERS"] = "42, 99"
	cfg, err := loadWith(newMemBackend(), mapEnv(env))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Discord.Token != "tok" {
		t.Errorf("Discord.Token = %q", cfg.Discord.Token)
	}
	if cfg.Blob.Container != "notes" {
		t.Errorf("Blob.Container = %q", cfg.Blob.Container)
	}
	if cfg.Metadata.Endpoint != "https://acct.documents.azure.com:443/" {
		t.Errorf("Metadata.Endpoint = %q", cfg.Metadata.Endpoint)
	}
	if cfg.Metadata.Database != "memory" {
		t.Errorf("Metadata.Database = %q", cfg.Metadata.Database)
	}
	if cfg.Access.AllowedUsers != "42, 99" {
		t.Errorf("Access.AllowedUsers = %q", cfg.Access.AllowedUsers)
	}
}

func TestLoad_BackendThenEnvPrecedence(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 5000
	b.data["log.level"] = "debug"

	env := fullEnv()
	env["TACHORA_SERVER_PORT"] = "6000"

	cfg, err := loadWith(b, mapEnv(env))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want env value 6000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want backend value debug", cfg.Log.Level)
	}
}

func TestLoad_SecretsIgnoredInBackend(t *testing.T) {
	b := newMemBackend()
	b.data["discord.token"] = "from-file"

	env := fullEnv()
	delete(env, "PROJO_DISCORD_BOT")

	_, err := loadWith(b, mapEnv(env))
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if !strings.Contains(err.Error(), "PROJO_DISCORD_BOT") {
		t.Errorf("error %q should name the env var", err)
	}
}

func TestLoad_InvalidIntEnvKeepsDefault(t *testing.T) {
	env := fullEnv()
	env["TACHORA_SERVER_PORT"] = "not-a-number"

	cfg, err := loadWith(newMemBackend(), mapEnv(env))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

func TestLoad_LocalBackendsNeedNoCloudSettings(t *testing.T) {
	b := newMemBackend()
	b.data["blob.backend"] = BlobDir
	b.data["metadata.backend"] = MetadataSQLite
	b.data["storage.data_dir"] = "/var/lib/tachora"

	cfg, err := loadWith(b, mapEnv(map[string]string{"PROJO_DISCORD_BOT": "tok"}))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Blob.Dir != filepath.Join("/var/lib/tachora", "blobs") {
		t.Errorf("Blob.Dir = %q, want data dir default", cfg.Blob.Dir)
	}
}

func TestLoad_MissingCloudSettings(t *testing.T) {
	_, err := loadWith(newMemBackend(), mapEnv(map[string]string{"PROJO_DISCORD_BOT": "tok"}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, env := range []string{"AZURE_CONNECTION_STRING", "AZURE_CONTAINER_NAME", "COSMOS_URI", "COSMOS_KEY", "COSMOS_DB", "COSMOS_CONTAINER"} {
		if !strings.Contains(err.Error(), env) {
			t.Errorf("error %q should mention %s", err, env)
		}
	}
}

func TestLoad_InvalidBackendName(t *testing.T) {
	env := fullEnv()
	env["TACHORA_BLOB_BACKEND"] = "s3"

	if _, err := loadWith(newMemBackend(), mapEnv(env)); err == nil {
		t.Fatal("expected error for unknown blob backend")
	}
}

func TestEnvLookup_DotenvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "TACHORA_TEST_FROM_FILE=file\nTACHORA_TEST_SHADOWED=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TACHORA_TEST_SHADOWED", "process")

	env := newEnvLookup(path)
	if got := env("TACHORA_TEST_FROM_FILE"); got != "file" {
		t.Errorf("from file = %q, want file", got)
	}
	if got := env("TACHORA_TEST_SHADOWED"); got != "process" {
		t.Errorf("shadowed = %q, want process", got)
	}
	if os.Getenv("TACHORA_TEST_FROM_FILE") != "" {
		t.Error("dotenv values must not leak into the process environment")
	}
}

func TestEnvLookup_MissingDotenv(t *testing.T) {
	env := newEnvLookup(filepath.Join(t.TempDir(), "absent.env"))
	if got := env("TACHORA_TEST_NOPE"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tachora", "config.yaml")

	b := newFileBackend(path)
	if err := b.SetString("blob.backend", "dir"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	reloaded := newFileBackend(path)
	if v, ok, _ := reloaded.GetString("blob.backend"); !ok || v != "dir" {
		t.Errorf("blob.backend = %q, %v", v, ok)
	}
	if v, ok, _ := reloaded.GetInt("server.port"); !ok || v != 4200 {
		t.Errorf("server.port = %d, %v", v, ok)
	}

	if err := reloaded.Delete("blob.backend"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("blob.backend"); ok {
		t.Error("blob.backend still present after Delete")
	}
}

func TestFileBackend_ParsesHandWrittenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "metadata.backend: sqlite\nserver.port: \"4300\"\naccess.allowed_users: 42,99\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if v, _, _ := b.GetString("metadata.backend"); v != "sqlite" {
		t.Errorf("metadata.backend = %q", v)
	}
	if v, _, err := b.GetInt("server.port"); err != nil || v != 4300 {
		t.Errorf("server.port = %d, err = %v", v, err)
	}
	if v, _, _ := b.GetString("access.allowed_users"); v != "42,99" {
		t.Errorf("access.allowed_users = %q", v)
	}
}

func TestFileBackend_BadYAMLFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if _, ok, _ := b.GetString("blob.backend"); ok {
		t.Error("expected empty backend")
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()

	if err := setKey(b, "server.port", "4500"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if b.data["server.port"] != 4500 {
		t.Errorf("server.port = %v", b.data["server.port"])
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "discord.token", "x"); err == nil {
		t.Error("expected error for secret key")
	}
	if err := setKey(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Discord.Token = "super-secret"

	got := make(map[string]KeyInfo)
	for _, info := range ShowAll(cfg) {
		if info.Value == "super-secret" {
			t.Errorf("secret leaked via %s", info.Key)
		}
		got[info.Key] = info
	}

	if info := got["discord.token"]; !info.Secret || info.Value != SecretSet {
		t.Errorf("discord.token = %+v, want masked as set", info)
	}
	if info := got["metadata.key"]; !info.Secret || info.Value != SecretUnset {
		t.Errorf("metadata.key = %+v, want masked as unset", info)
	}
	if info := got["server.port"]; info.Secret || info.Value != "4100" || info.EnvVar != "TACHORA_SERVER_PORT" {
		t.Errorf("server.port = %+v", info)
	}
	if len(got) != len(specs) {
		t.Errorf("ShowAll returned %d keys, want %d", len(got), len(specs))
	}

	for _, k := range ValidKeys() {
		if k == "discord.token" || k == "metadata.key" || k == "blob.connection_string" {
			t.Errorf("ValidKeys contains secret %q", k)
		}
	}
}
