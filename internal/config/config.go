package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/bridgectl/internal/registry"
)

const envPrefix = "BRIDGE"

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"

	WaiterSimulated = "simulated"
	WaiterLive      = "live"
)

type GlobalFlags struct {
	ConfigPath     string
	EnvFile        string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	LogLevel       string
	LogFormat      string
	Store          string
	StorePath      string
	RedisAddr      string
	Waiter         string
	PhaseTimeout   string
	NoRemote       bool
	KeySource      string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	LogLevel       string
	LogFormat      string

	StoreBackend  string
	StorePath     string
	StoreLockPath string
	RedisAddr     string
	StoreKey      string

	RemoteInterpreter bool
	LLMEndpoint       string
	LLMModel          string
	LLMAPIKey         string
	LLMRate           float64
	LLMBurst          int
	InterpretCacheTTL time.Duration

	WaiterMode         string
	PhaseTimeout       time.Duration
	PhaseDelay         time.Duration
	PollInterval       time.Duration
	Confirmations      uint64
	RPCOverrides       map[registry.ChainID]string
	SettlementProvider string
	SettlementEndpoint string

	KeySource    string
	KafkaBrokers []string
	KafkaTopic   string
	ListenAddr   string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Log     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		Redis    string `yaml:"redis_addr"`
		Key      string `yaml:"key"`
	} `yaml:"store"`
	Interpreter struct {
		Remote    *bool   `yaml:"remote"`
		Endpoint  string  `yaml:"endpoint"`
		Model     string  `yaml:"model"`
		APIKey    string  `yaml:"api_key"`
		APIKeyEnv string  `yaml:"api_key_env"`
		Rate      float64 `yaml:"rate"`
		Burst     int     `yaml:"burst"`
		CacheTTL  string  `yaml:"cache_ttl"`
	} `yaml:"interpreter"`
	Bridge struct {
		Waiter             string            `yaml:"waiter"`
		PhaseTimeout       string            `yaml:"phase_timeout"`
		PhaseDelay         string            `yaml:"phase_delay"`
		PollInterval       string            `yaml:"poll_interval"`
		Confirmations      *uint64           `yaml:"confirmations"`
		RPC                map[string]string `yaml:"rpc"`
		SettlementProvider string            `yaml:"settlement_provider"`
		SettlementEndpoint string            `yaml:"settlement_endpoint"`
	} `yaml:"bridge"`
	Wallet struct {
		KeySource string `yaml:"key_source"`
	} `yaml:"wallet"`
	Events struct {
		Brokers []string `yaml:"kafka_brokers"`
		Topic   string   `yaml:"kafka_topic"`
	} `yaml:"events"`
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
}

// envConfig is read with the BRIDGE_ prefix. Pointers distinguish unset
// variables from zero values.
type envConfig struct {
	Output             string         `envconfig:"OUTPUT"`
	Timeout            *time.Duration `envconfig:"TIMEOUT"`
	Retries            *int           `envconfig:"RETRIES"`
	LogLevel           string         `envconfig:"LOG_LEVEL"`
	LogFormat          string         `envconfig:"LOG_FORMAT"`
	Store              string         `envconfig:"STORE"`
	StorePath          string         `envconfig:"STORE_PATH"`
	StoreLockPath      string         `envconfig:"STORE_LOCK_PATH"`
	RedisAddr          string         `envconfig:"REDIS_ADDR"`
	StoreKey           string         `envconfig:"STORE_KEY"`
	Remote             *bool          `envconfig:"REMOTE_INTERPRETER"`
	LLMEndpoint        string         `envconfig:"LLM_ENDPOINT"`
	LLMModel           string         `envconfig:"LLM_MODEL"`
	LLMAPIKey          string         `envconfig:"LLM_API_KEY"`
	LLMRate            *float64       `envconfig:"LLM_RATE"`
	LLMBurst           *int           `envconfig:"LLM_BURST"`
	CacheTTL           *time.Duration `envconfig:"INTERPRET_CACHE_TTL"`
	Waiter             string         `envconfig:"WAITER"`
	PhaseTimeout       *time.Duration `envconfig:"PHASE_TIMEOUT"`
	PhaseDelay         *time.Duration `envconfig:"PHASE_DELAY"`
	PollInterval       *time.Duration `envconfig:"POLL_INTERVAL"`
	Confirmations      *uint64        `envconfig:"CONFIRMATIONS"`
	RPCURLs            []string       `envconfig:"RPC_URLS"`
	SettlementProvider string         `envconfig:"SETTLEMENT_PROVIDER"`
	SettlementEndpoint string         `envconfig:"SETTLEMENT_ENDPOINT"`
	KeySource          string         `envconfig:"KEY_SOURCE"`
	KafkaBrokers       []string       `envconfig:"KAFKA_BROKERS"`
	KafkaTopic         string         `envconfig:"KAFKA_TOPIC"`
	Listen             string         `envconfig:"LISTEN"`
}

// Load resolves settings from defaults, the yaml file, the .env file, the
// environment and flags, later layers winning.
func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}
	if err := loadDotEnv(flags.EnvFile); err != nil {
		return Settings{}, err
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PhaseTimeout <= 0 {
		settings.PhaseTimeout = 10 * time.Minute
	}
	if settings.LLMRate <= 0 {
		settings.LLMRate = 2
	}
	if settings.LLMBurst <= 0 {
		settings.LLMBurst = 1
	}
	return settings, validate(settings)
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:         "json",
		Timeout:            10 * time.Second,
		Retries:            2,
		LogLevel:           "warn",
		LogFormat:          "console",
		StoreBackend:       StoreSQLite,
		StorePath:          storePath,
		StoreLockPath:      lockPath,
		RedisAddr:          "127.0.0.1:6379",
		StoreKey:           "bridge_transactions",
		RemoteInterpreter:  true,
		LLMEndpoint:        registry.DefaultLLMEndpoint,
		LLMModel:           registry.DefaultLLMModel,
		LLMAPIKey:          os.Getenv("OPENAI_API_KEY"),
		LLMRate:            2,
		LLMBurst:           1,
		InterpretCacheTTL:  24 * time.Hour,
		WaiterMode:         WaiterSimulated,
		PhaseTimeout:       10 * time.Minute,
		PhaseDelay:         2 * time.Second,
		PollInterval:       5 * time.Second,
		Confirmations:      2,
		RPCOverrides:       map[registry.ChainID]string{},
		SettlementProvider: "lifi",
		KeySource:          "auto",
		KafkaTopic:         "bridge-status",
		ListenAddr:         "127.0.0.1:8645",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "bridge", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "bridge")
	return filepath.Join(dir, "bridge.db"), filepath.Join(dir, "bridge.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if err := setDuration(&settings.Timeout, cfg.Timeout, "timeout"); err != nil {
		return err
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	setString(&settings.LogLevel, cfg.Log.Level)
	setString(&settings.LogFormat, cfg.Log.Format)

	setString(&settings.StoreBackend, strings.ToLower(cfg.Store.Backend))
	setString(&settings.StorePath, cfg.Store.Path)
	setString(&settings.StoreLockPath, cfg.Store.LockPath)
	setString(&settings.RedisAddr, cfg.Store.Redis)
	setString(&settings.StoreKey, cfg.Store.Key)

	if cfg.Interpreter.Remote != nil {
		settings.RemoteInterpreter = *cfg.Interpreter.Remote
	}
	setString(&settings.LLMEndpoint, cfg.Interpreter.Endpoint)
	setString(&settings.LLMModel, cfg.Interpreter.Model)
	setString(&settings.LLMAPIKey, cfg.Interpreter.APIKey)
	if cfg.Interpreter.APIKeyEnv != "" {
		settings.LLMAPIKey = os.Getenv(cfg.Interpreter.APIKeyEnv)
	}
	if cfg.Interpreter.Rate > 0 {
		settings.LLMRate = cfg.Interpreter.Rate
	}
	if cfg.Interpreter.Burst > 0 {
		settings.LLMBurst = cfg.Interpreter.Burst
	}
	if err := setDuration(&settings.InterpretCacheTTL, cfg.Interpreter.CacheTTL, "interpreter.cache_ttl"); err != nil {
		return err
	}

	setString(&settings.WaiterMode, strings.ToLower(cfg.Bridge.Waiter))
	if err := setDuration(&settings.PhaseTimeout, cfg.Bridge.PhaseTimeout, "bridge.phase_timeout"); err != nil {
		return err
	}
	if err := setDuration(&settings.PhaseDelay, cfg.Bridge.PhaseDelay, "bridge.phase_delay"); err != nil {
		return err
	}
	if err := setDuration(&settings.PollInterval, cfg.Bridge.PollInterval, "bridge.poll_interval"); err != nil {
		return err
	}
	if cfg.Bridge.Confirmations != nil {
		settings.Confirmations = *cfg.Bridge.Confirmations
	}
	for chain, url := range cfg.Bridge.RPC {
		if err := setRPCOverride(settings, chain, url); err != nil {
			return fmt.Errorf("config bridge.rpc: %w", err)
		}
	}
	setString(&settings.SettlementProvider, cfg.Bridge.SettlementProvider)
	setString(&settings.SettlementEndpoint, cfg.Bridge.SettlementEndpoint)

	setString(&settings.KeySource, cfg.Wallet.KeySource)
	if len(cfg.Events.Brokers) > 0 {
		settings.KafkaBrokers = cfg.Events.Brokers
	}
	setString(&settings.KafkaTopic, cfg.Events.Topic)
	setString(&settings.ListenAddr, cfg.Server.Listen)
	return nil
}

// loadDotEnv exports variables from a .env file without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyEnv(settings *Settings) error {
	var env envConfig
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	setString(&settings.OutputMode, strings.ToLower(env.Output))
	if env.Timeout != nil {
		settings.Timeout = *env.Timeout
	}
	if env.Retries != nil {
		settings.Retries = *env.Retries
	}
	setString(&settings.LogLevel, env.LogLevel)
	setString(&settings.LogFormat, env.LogFormat)
	setString(&settings.StoreBackend, strings.ToLower(env.Store))
	setString(&settings.StorePath, env.StorePath)
	setString(&settings.StoreLockPath, env.StoreLockPath)
	setString(&settings.RedisAddr, env.RedisAddr)
	setString(&settings.StoreKey, env.StoreKey)
	if env.Remote != nil {
		settings.RemoteInterpreter = *env.Remote
	}
	setString(&settings.LLMEndpoint, env.LLMEndpoint)
	setString(&settings.LLMModel, env.LLMModel)
	setString(&settings.LLMAPIKey, env.LLMAPIKey)
	if env.LLMRate != nil {
		settings.LLMRate = *env.LLMRate
	}
	if env.LLMBurst != nil {
		settings.LLMBurst = *env.LLMBurst
	}
	if env.CacheTTL != nil {
		settings.InterpretCacheTTL = *env.CacheTTL
	}
	setString(&settings.WaiterMode, strings.ToLower(env.Waiter))
	if env.PhaseTimeout != nil {
		settings.PhaseTimeout = *env.PhaseTimeout
	}
	if env.PhaseDelay != nil {
		settings.PhaseDelay = *env.PhaseDelay
	}
	if env.PollInterval != nil {
		settings.PollInterval = *env.PollInterval
	}
	if env.Confirmations != nil {
		settings.Confirmations = *env.Confirmations
	}
	for _, entry := range env.RPCURLs {
		chain, url, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("%s_RPC_URLS entries must look like chain=url, got %q", envPrefix, entry)
		}
		if err := setRPCOverride(settings, chain, url); err != nil {
			return fmt.Errorf("%s_RPC_URLS: %w", envPrefix, err)
		}
	}
	setString(&settings.SettlementProvider, env.SettlementProvider)
	setString(&settings.SettlementEndpoint, env.SettlementEndpoint)
	setString(&settings.KeySource, env.KeySource)
	if len(env.KafkaBrokers) > 0 {
		settings.KafkaBrokers = env.KafkaBrokers
	}
	setString(&settings.KafkaTopic, env.KafkaTopic)
	setString(&settings.ListenAddr, env.Listen)
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if err := setDuration(&settings.Timeout, flags.Timeout, "--timeout"); err != nil {
		return err
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	setString(&settings.LogLevel, flags.LogLevel)
	setString(&settings.LogFormat, flags.LogFormat)
	setString(&settings.StoreBackend, strings.ToLower(flags.Store))
	if strings.TrimSpace(flags.StorePath) != "" {
		settings.StorePath = flags.StorePath
		settings.StoreLockPath = strings.TrimSuffix(flags.StorePath, filepath.Ext(flags.StorePath)) + ".lock"
	}
	setString(&settings.RedisAddr, flags.RedisAddr)
	setString(&settings.WaiterMode, strings.ToLower(flags.Waiter))
	if err := setDuration(&settings.PhaseTimeout, flags.PhaseTimeout, "--phase-timeout"); err != nil {
		return err
	}
	if flags.NoRemote {
		settings.RemoteInterpreter = false
	}
	setString(&settings.KeySource, flags.KeySource)
	return nil
}

func validate(settings Settings) error {
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if settings.StoreBackend != StoreSQLite && settings.StoreBackend != StoreRedis {
		return fmt.Errorf("store backend must be %s or %s", StoreSQLite, StoreRedis)
	}
	if settings.WaiterMode != WaiterSimulated && settings.WaiterMode != WaiterLive {
		return fmt.Errorf("waiter must be %s or %s", WaiterSimulated, WaiterLive)
	}
	if settings.LogFormat != "json" && settings.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	return nil
}

func setRPCOverride(settings *Settings, chain, url string) error {
	desc, err := registry.ParseChain(chain)
	if err != nil {
		return err
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("empty rpc url for %s", desc.ID)
	}
	settings.RPCOverrides[desc.ID] = strings.TrimSpace(url)
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setDuration(dst *time.Duration, raw, name string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
