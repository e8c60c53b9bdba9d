package config

import "testing"

func TestDefaultConfigUsesLocalActionLog(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ActionLog.Backend != "local" {
		t.Fatalf("expected local backend, got %s", cfg.ActionLog.Backend)
	}
}

func TestLoadFromEnvOverridesModuleProviderBackend(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("GAMESERVER_MODULEPROVIDER_BACKEND", "s3")
	t.Setenv("GAMESERVER_MODULEPROVIDER_BUCKET", "modules-bucket")

	LoadFromEnv(cfg)

	if cfg.ModuleProvider.Backend != "s3" {
		t.Fatalf("expected s3 backend, got %s", cfg.ModuleProvider.Backend)
	}
	if cfg.ModuleProvider.Bucket != "modules-bucket" {
		t.Fatalf("expected bucket override, got %s", cfg.ModuleProvider.Bucket)
	}
}

func TestLoadFromEnvLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Sandbox.RunTimeout != DefaultConfig().Sandbox.RunTimeout {
		t.Fatalf("expected default run timeout untouched")
	}
}
