package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Poller.CallbackInterval != time.Minute {
		t.Errorf("callback interval = %v", cfg.Poller.CallbackInterval)
	}
	if cfg.Ledger.Retention() != 30*24*time.Hour {
		t.Errorf("retention = %v", cfg.Ledger.Retention())
	}
	if len(cfg.Kafka.Topics) != 2 {
		t.Errorf("topics = %v", cfg.Kafka.Topics)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CRM_NOTIFY_STORAGE_BACKEND", "redis")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("CRM_NOTIFY_POLLER_TRANSFER_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("db port = %d", cfg.Database.Port)
	}
	if cfg.Poller.TransferInterval != 30*time.Second {
		t.Errorf("transfer interval = %v", cfg.Poller.TransferInterval)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "crm", User: "u", Password: "p"}
	want := "host=db port=5432 dbname=crm user=u password=p sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestCRMLocation(t *testing.T) {
	loc, err := CRMConfig{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("empty timezone = %v, %v", loc, err)
	}
	if _, err := (CRMConfig{Timezone: "Not/AZone"}).Location(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	loc, err = CRMConfig{Timezone: "Europe/Moscow"}.Location()
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Fatalf("location = %v", loc)
	}
}
