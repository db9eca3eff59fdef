package authapi

import "testing"

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg=%+v want=%+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("KOACH_API_MAX_BODY_BYTES", "2048")
	t.Setenv("KOACH_API_TRUST_PROXY", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxBodyBytes != 2048 || !cfg.TrustProxy {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_ClampsBodyLimit(t *testing.T) {
	t.Setenv("KOACH_API_MAX_BODY_BYTES", "-1")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("MaxBodyBytes=%d", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("KOACH_API_MAX_BODY_BYTES", "lots")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected parse error")
	}
}
