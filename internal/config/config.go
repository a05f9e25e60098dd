package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Slider  SliderConfig  `mapstructure:"slider"`
	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Listgen ListgenConfig `mapstructure:"listgen"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds media server configuration
type ServerConfig struct {
	URL      string `mapstructure:"url"`      // Server URL
	Token    string `mapstructure:"token"`    // Access token or API key
	UserID   string `mapstructure:"user_id"`  // User the slides are selected for
	Username string `mapstructure:"username"` // display only
}

// SliderConfig holds selection and timing settings
type SliderConfig struct {
	SlideDuration time.Duration `mapstructure:"slide_duration"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`

	Limit      int `mapstructure:"limit"`
	SavedLimit int `mapstructure:"saved_limit"`

	ShuffleSeedLimit  int      `mapstructure:"shuffle_seed_limit"`
	MaxShufflingLimit int      `mapstructure:"max_shuffling_limit"`
	SortingKeywords   []string `mapstructure:"sorting_keywords"`
	Keywords          string   `mapstructure:"keywords"` // free text; a sorting keyword here forces plain random picks

	CustomQueryString string `mapstructure:"custom_query_string"`
	OnlyUnwatched     bool   `mapstructure:"only_unwatched_random"`
	BalanceItemTypes  bool   `mapstructure:"balance_item_types"`

	PlayingLimit               int  `mapstructure:"playing_limit"`
	ExcludeEpisodesFromPlaying bool `mapstructure:"exclude_episodes_from_playing"`

	UseListFile  bool   `mapstructure:"use_list_file"`
	ListFilePath string `mapstructure:"list_file_path"` // {userId} is replaced

	UseManualList bool   `mapstructure:"use_manual_list"`
	ManualListIDs string `mapstructure:"manual_list_ids"` // comma separated
}

// StorageConfig selects the key-value backend
type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // "bolt", "redis" or "memory"
	Path       string `mapstructure:"path"`
	RedisURL   string `mapstructure:"redis_url"`
	QuotaBytes int    `mapstructure:"quota_bytes"` // 0 = unlimited
}

// HTTPConfig holds the serve listener settings
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// ListgenConfig holds list file generator settings
type ListgenConfig struct {
	Dir              string        `mapstructure:"dir"`
	QueryString      string        `mapstructure:"query_string"`
	ItemLimit        int           `mapstructure:"item_limit"`
	GuaranteePerType int           `mapstructure:"guarantee_per_type"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	Refresh          time.Duration `mapstructure:"refresh"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text", stderr only
}

// DefaultQueryString is the catalog query used when none is configured
const DefaultQueryString = "IncludeItemTypes=Movie,Series&Recursive=true&hasOverview=true&imageTypes=Logo,Backdrop&sortBy=DateCreated&sortOrder=Descending"

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Slider: SliderConfig{
			SlideDuration:              8 * time.Second,
			SettleDelay:                30 * time.Millisecond,
			Limit:                      20,
			ShuffleSeedLimit:           1000,
			MaxShufflingLimit:          10000,
			SortingKeywords:            []string{"DateCreated", "PremiereDate", "ProductionYear", "Random"},
			CustomQueryString:          DefaultQueryString,
			BalanceItemTypes:           true,
			ExcludeEpisodesFromPlaying: true,
			UseListFile:                true,
			ListFilePath:               "/slider/list/list_{userId}.txt",
		},
		Storage: StorageConfig{
			Backend: "bolt",
			Path:    defaultDataPath(),
		},
		HTTP: HTTPConfig{
			Addr: ":8095",
		},
		Listgen: ListgenConfig{
			Dir:              filepath.Join(defaultDataPath(), "list"),
			QueryString:      "IncludeItemTypes=Movie,Series&Recursive=true&hasOverview=true&imageTypes=Logo,Backdrop",
			ItemLimit:        100,
			GuaranteePerType: 20,
			HistoryLimit:     2,
			Refresh:          30 * time.Minute,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	return filepath.Join(defaultDataPath(), "marquee.log")
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "marquee")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "marquee")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "marquee")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "marquee")
	}
}

// LoadConfig loads configuration from file and environment.
// A .env file in the working directory is applied to the environment first.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides (MARQUEE_SLIDER_LIMIT=10)
	viper.SetEnvPrefix("MARQUEE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// bindEnv registers the keys viper must look up in the environment even when
// the config file does not mention them
func bindEnv() {
	for _, key := range []string{
		"server.url", "server.token", "server.user_id", "server.username",
		"slider.limit", "slider.slide_duration", "slider.custom_query_string",
		"storage.backend", "storage.path", "storage.redis_url", "storage.quota_bytes",
		"http.addr", "listgen.dir", "logging.file", "logging.level", "logging.format",
	} {
		_ = viper.BindEnv(key)
	}
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.token", cfg.Server.Token)
	viper.Set("server.user_id", cfg.Server.UserID)
	viper.Set("server.username", cfg.Server.Username)

	viper.Set("slider.slide_duration", cfg.Slider.SlideDuration.String())
	viper.Set("slider.settle_delay", cfg.Slider.SettleDelay.String())
	viper.Set("slider.limit", cfg.Slider.Limit)
	viper.Set("slider.saved_limit", cfg.Slider.SavedLimit)
	viper.Set("slider.shuffle_seed_limit", cfg.Slider.ShuffleSeedLimit)
	viper.Set("slider.max_shuffling_limit", cfg.Slider.MaxShufflingLimit)
	viper.Set("slider.sorting_keywords", cfg.Slider.SortingKeywords)
	viper.Set("slider.keywords", cfg.Slider.Keywords)
	viper.Set("slider.custom_query_string", cfg.Slider.CustomQueryString)
	viper.Set("slider.only_unwatched_random", cfg.Slider.OnlyUnwatched)
	viper.Set("slider.balance_item_types", cfg.Slider.BalanceItemTypes)
	viper.Set("slider.playing_limit", cfg.Slider.PlayingLimit)
	viper.Set("slider.exclude_episodes_from_playing", cfg.Slider.ExcludeEpisodesFromPlaying)
	viper.Set("slider.use_list_file", cfg.Slider.UseListFile)
	viper.Set("slider.list_file_path", cfg.Slider.ListFilePath)
	viper.Set("slider.use_manual_list", cfg.Slider.UseManualList)
	viper.Set("slider.manual_list_ids", cfg.Slider.ManualListIDs)

	viper.Set("storage.backend", cfg.Storage.Backend)
	viper.Set("storage.path", cfg.Storage.Path)
	viper.Set("storage.redis_url", cfg.Storage.RedisURL)
	viper.Set("storage.quota_bytes", cfg.Storage.QuotaBytes)

	viper.Set("http.addr", cfg.HTTP.Addr)

	viper.Set("listgen.dir", cfg.Listgen.Dir)
	viper.Set("listgen.query_string", cfg.Listgen.QueryString)
	viper.Set("listgen.item_limit", cfg.Listgen.ItemLimit)
	viper.Set("listgen.guarantee_per_type", cfg.Listgen.GuaranteePerType)
	viper.Set("listgen.history_limit", cfg.Listgen.HistoryLimit)
	viper.Set("listgen.refresh", cfg.Listgen.Refresh.String())

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)
	viper.Set("logging.format", cfg.Logging.Format)

	return writeConfig()
}

// SaveCredentials updates just the server credentials in the configuration
func SaveCredentials(url, token, userID, username string) error {
	viper.Set("server.url", url)
	viper.Set("server.token", token)
	viper.Set("server.user_id", userID)
	viper.Set("server.username", username)
	return writeConfig()
}

func writeConfig() error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsConfigured returns true if the server URL and token are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}

// Validate checks settings the engine cannot run without
func (c *Config) Validate() error {
	if c.Slider.SlideDuration <= 0 {
		return fmt.Errorf("slider.slide_duration must be positive, got %s", c.Slider.SlideDuration)
	}
	switch c.Storage.Backend {
	case "bolt", "memory", "":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
