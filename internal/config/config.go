package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Upload  UploadConfig
}

// ServerConfig holds the target server settings.
type ServerConfig struct {
	// Base URL including the application root, e.g. https://host/cb.
	URL      string
	Username string
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// SQLite database file for the persistent key-value store.
	DBPath string
	// Directory where downloaded attachments are kept.
	AttachmentDir string
}

// UploadConfig holds chunked upload tuning.
type UploadConfig struct {
	// Chunk size in bytes. The server's resumable upload servlet expects 1 MiB.
	ChunkSize int64
	// Maximum simultaneous chunk streams per file.
	SimultaneousChunks int
}

const (
	defaultChunkSize          = 1 << 20
	defaultSimultaneousChunks = 4
)

// Load reads configuration from the specified INI file.
func Load(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}

	serverSection := cfg.Section("server")
	config.Server.URL = serverSection.Key("url").String()
	config.Server.Username = serverSection.Key("username").String()

	storageSection := cfg.Section("storage")
	config.Storage.DBPath = storageSection.Key("db_path").MustString(defaultDBPath())
	config.Storage.AttachmentDir = storageSection.Key("attachment_dir").MustString(defaultAttachmentDir())

	uploadSection := cfg.Section("upload")
	config.Upload.ChunkSize = uploadSection.Key("chunk_size").MustInt64(defaultChunkSize)
	config.Upload.SimultaneousChunks = uploadSection.Key("simultaneous_chunks").MustInt(defaultSimultaneousChunks)

	return config, nil
}

// LoadDefault attempts to load config from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("config.ini"); err == nil {
		return Load("config.ini")
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".cbrunner", "config.ini")
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	return nil, fmt.Errorf("config.ini not found")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("upload.chunk_size must be positive")
	}
	if c.Upload.SimultaneousChunks <= 0 {
		return fmt.Errorf("upload.simultaneous_chunks must be positive")
	}
	return nil
}

// Save writes configuration to the specified INI file.
func (c *Config) Save(path string) error {
	cfg := ini.Empty()

	serverSection, _ := cfg.NewSection("server")
	serverSection.NewKey("url", c.Server.URL)
	serverSection.NewKey("username", c.Server.Username)

	storageSection, _ := cfg.NewSection("storage")
	storageSection.NewKey("db_path", c.Storage.DBPath)
	storageSection.NewKey("attachment_dir", c.Storage.AttachmentDir)

	uploadSection, _ := cfg.NewSection("upload")
	uploadSection.NewKey("chunk_size", fmt.Sprintf("%d", c.Upload.ChunkSize))
	uploadSection.NewKey("simultaneous_chunks", fmt.Sprintf("%d", c.Upload.SimultaneousChunks))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return cfg.SaveTo(path)
}

// SaveDefault saves configuration to the default location.
func (c *Config) SaveDefault() error {
	if _, err := os.Stat("config.ini"); err == nil {
		return c.Save("config.ini")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return c.Save(filepath.Join(homeDir, ".cbrunner", "config.ini"))
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "cbrunner.db"
	}
	return filepath.Join(homeDir, ".cbrunner", "cbrunner.db")
}

func defaultAttachmentDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "attachments"
	}
	return filepath.Join(homeDir, ".cbrunner", "attachments")
}
