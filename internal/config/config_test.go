package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ggonzalez94/bridgectl/internal/registry"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	return tmp
}

func TestLoadDefaults(t *testing.T) {
	tmp := isolate(t)
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" || settings.StoreBackend != StoreSQLite || settings.WaiterMode != WaiterSimulated {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
	if settings.PhaseTimeout != 10*time.Minute || settings.PhaseDelay != 2*time.Second {
		t.Fatalf("unexpected phase defaults: timeout=%s delay=%s", settings.PhaseTimeout, settings.PhaseDelay)
	}
	if settings.Retries != 2 {
		t.Fatalf("expected default retries, got %d", settings.Retries)
	}
	if want := filepath.Join(tmp, "state", "bridge", "bridge.db"); settings.StorePath != want {
		t.Fatalf("unexpected store path %s, want %s", settings.StorePath, want)
	}
}

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := isolate(t)
	configPath := filepath.Join(tmp, "config.yaml")
	yamlBody := "output: plain\nretries: 1\nstore:\n  backend: redis\nbridge:\n  waiter: live\n  phase_timeout: 3m\n"
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BRIDGE_OUTPUT", "json")
	t.Setenv("BRIDGE_PHASE_TIMEOUT", "4m")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
	if settings.StoreBackend != StoreRedis || settings.WaiterMode != WaiterLive {
		t.Fatalf("expected file values, got store=%s waiter=%s", settings.StoreBackend, settings.WaiterMode)
	}
	if settings.PhaseTimeout != 4*time.Minute {
		t.Fatalf("expected env to beat file, got %s", settings.PhaseTimeout)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	isolate(t)
	_, err := Load(GlobalFlags{JSON: true, Plain: true})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	tmp := isolate(t)
	envPath := filepath.Join(tmp, "bridge.env")
	body := "BRIDGE_LLM_MODEL=from-dotenv\nBRIDGE_KAFKA_TOPIC=from-dotenv\n"
	if err := os.WriteFile(envPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BRIDGE_KAFKA_TOPIC", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("BRIDGE_LLM_MODEL") })

	settings, err := Load(GlobalFlags{EnvFile: envPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.LLMModel != "from-dotenv" {
		t.Fatalf("expected model from .env, got %s", settings.LLMModel)
	}
	if settings.KafkaTopic != "from-env" {
		t.Fatalf("expected real env to win over .env, got %s", settings.KafkaTopic)
	}
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	tmp := isolate(t)
	if _, err := Load(GlobalFlags{EnvFile: filepath.Join(tmp, "missing.env")}); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestLoadRPCOverrides(t *testing.T) {
	tmp := isolate(t)
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("bridge:\n  rpc:\n    matic: https://polygon.example\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BRIDGE_RPC_URLS", "ethereum=https://eth.example:8545,base=http://127.0.0.1:8545")

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := map[registry.ChainID]string{
		registry.Polygon:  "https://polygon.example",
		registry.Ethereum: "https://eth.example:8545",
		registry.Base:     "http://127.0.0.1:8545",
	}
	for chain, url := range want {
		if settings.RPCOverrides[chain] != url {
			t.Fatalf("override for %s = %q, want %q", chain, settings.RPCOverrides[chain], url)
		}
	}

	t.Setenv("BRIDGE_RPC_URLS", "narnia=https://x")
	if _, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1}); err == nil {
		t.Fatal("expected unknown chain override error")
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	isolate(t)
	if _, err := Load(GlobalFlags{Store: "postgres", Retries: -1}); err == nil {
		t.Fatal("expected store backend error")
	}
	if _, err := Load(GlobalFlags{Waiter: "magic", Retries: -1}); err == nil {
		t.Fatal("expected waiter mode error")
	}
}

func TestLoadEnvTypedValues(t *testing.T) {
	isolate(t)
	t.Setenv("BRIDGE_REMOTE_INTERPRETER", "false")
	t.Setenv("BRIDGE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BRIDGE_CONFIRMATIONS", "6")
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RemoteInterpreter {
		t.Fatal("expected remote interpreter disabled")
	}
	if len(settings.KafkaBrokers) != 2 || settings.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", settings.KafkaBrokers)
	}
	if settings.Confirmations != 6 {
		t.Fatalf("unexpected confirmations: %d", settings.Confirmations)
	}

	t.Setenv("BRIDGE_TIMEOUT", "soon")
	if _, err := Load(GlobalFlags{Retries: -1}); err == nil {
		t.Fatal("expected invalid duration error")
	}
}
