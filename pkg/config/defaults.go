package config

import "time"

// Default values for every section.
const (
	DefaultPort            = 9999
	DefaultShutdownTimeout = 30 * time.Second
	DefaultStorageRoot     = "server_storage"
	DefaultCredentialsFile = "id_passwd.txt"
	DefaultMetricsPort     = 9100
	DefaultDownloadDir     = "downloads"
)

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			BindAddress:     "",
			Port:            DefaultPort,
			MaxConnections:  0,
			ShutdownTimeout: DefaultShutdownTimeout,
			StorageRoot:     DefaultStorageRoot,
			CredentialsFile: DefaultCredentialsFile,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    DefaultMetricsPort,
		},
		Client: ClientConfig{
			Host:        "localhost",
			Port:        DefaultPort,
			DownloadDir: DefaultDownloadDir,
		},
	}
}

// ApplyDefaults fills in zero values on a partially specified config, so a
// config file only needs the keys it wants to change.
func ApplyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Server.StorageRoot == "" {
		cfg.Server.StorageRoot = def.Server.StorageRoot
	}
	if cfg.Server.CredentialsFile == "" {
		cfg.Server.CredentialsFile = def.Server.CredentialsFile
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = def.Metrics.Port
	}

	if cfg.Client.Host == "" {
		cfg.Client.Host = def.Client.Host
	}
	if cfg.Client.Port == 0 {
		cfg.Client.Port = def.Client.Port
	}
	if cfg.Client.DownloadDir == "" {
		cfg.Client.DownloadDir = def.Client.DownloadDir
	}
}
