package dbfixture

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the dbfixture project configuration
type Config struct {
	Databases         map[string]Database `yaml:"databases"`
	DefaultConnection string              `yaml:"default_connection"`
	DatasetDir        string              `yaml:"dataset_dir"`
	Composition       CompositionConfig   `yaml:"composition"`
	Teardown          TeardownConfig      `yaml:"teardown"`
}

// Database represents database connection configuration
type Database struct {
	Dialect    string `yaml:"dialect"`
	Connection string `yaml:"connection"`
}

// CompositionConfig controls how multiple datasets declaring the same table are composed.
// With combine_rows false (the default) the first dataset's table wins; with combine_rows
// true rows from later datasets are appended to the first table's rows.
type CompositionConfig struct {
	CombineRows bool `yaml:"combine_rows"`
}

// TeardownConfig controls fault isolation between teardown directives.
// fail-fast (default) stops at the first failing directive; best-effort runs every
// directive and aggregates the errors.
type TeardownConfig struct {
	Policy string `yaml:"policy"`
}

const (
	TeardownFailFast   = "fail-fast"
	TeardownBestEffort = "best-effort"
)

// LoadConfig loads the configuration from the given path, falling back to defaults when the
// file does not exist. Environment variables referenced as ${VAR} or $VAR in connection
// strings are expanded after an optional .env file is loaded.
func LoadConfig(configPath string) (*Config, error) {
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func getDefaultConfig() *Config {
	return &Config{
		Databases:  make(map[string]Database),
		DatasetDir: "./testdata",
		Teardown:   TeardownConfig{Policy: TeardownFailFast},
	}
}

func applyDefaults(config *Config) {
	if config.Databases == nil {
		config.Databases = make(map[string]Database)
	}

	if config.DatasetDir == "" {
		config.DatasetDir = "./testdata"
	}

	if config.Teardown.Policy == "" {
		config.Teardown.Policy = TeardownFailFast
	}
}

func validateConfig(config *Config) error {
	validDialects := map[string]bool{
		"postgres": true,
		"mysql":    true,
		"sqlite":   true,
	}

	for name, db := range config.Databases {
		if !validDialects[db.Dialect] {
			return fmt.Errorf("%w: database '%s': invalid dialect '%s': must be one of postgres, mysql, sqlite", ErrConfigValidation, name, db.Dialect)
		}

		if db.Connection == "" {
			return fmt.Errorf("%w: database '%s': connection string is required", ErrConfigValidation, name)
		}
	}

	if config.DefaultConnection != "" {
		if _, ok := config.Databases[config.DefaultConnection]; !ok {
			return fmt.Errorf("%w: default_connection '%s' is not a declared database", ErrConfigValidation, config.DefaultConnection)
		}
	}

	switch config.Teardown.Policy {
	case TeardownFailFast, TeardownBestEffort:
	default:
		return fmt.Errorf("%w: teardown policy '%s': must be fail-fast or best-effort", ErrConfigValidation, config.Teardown.Policy)
	}

	return nil
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareEnvVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return bareEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in config
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Connection = expandEnvVars(db.Connection)
		db.Dialect = expandEnvVars(db.Dialect)
		config.Databases[name] = db
	}

	config.DatasetDir = expandEnvVars(config.DatasetDir)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
