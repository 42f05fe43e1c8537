// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the application configuration from defaults, an
// optional YAML file, a .env file, RESEARCH_* environment variables and the
// secrets directory, in increasing order of precedence (secrets only fill
// values left empty).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Name is the config file base name and the ~/.config subdirectory.
const Name = "research-assistant"

// EnvPrefix prefixes every automatically bound environment variable.
const EnvPrefix = "RESEARCH"

// DotEnvPath is loaded into the process environment before viper reads it.
var DotEnvPath = ".env"

// envAliases binds keys to environment names that do not follow the
// RESEARCH_<SECTION>_<KEY> pattern.
var envAliases = map[string][]string{
	"debug":                        {"RESEARCH_DEBUG"},
	"log_level":                    {"RESEARCH_LOG_LEVEL"},
	"api.host":                     {"RESEARCH_API_HOST", "API_HOST"},
	"api.port":                     {"RESEARCH_API_PORT", "API_PORT"},
	"api.web_port":                 {"RESEARCH_WEB_PORT", "WEB_PORT"},
	"models.scientific_embeddings": {"RESEARCH_SCIENTIFIC_MODEL", "SCIENTIFIC_MODEL"},
	"models.text_model":            {"RESEARCH_TEXT_MODEL", "TEXT_MODEL"},
	"processing.max_file_size":     {"RESEARCH_MAX_FILE_SIZE", "MAX_FILE_SIZE"},
	"processing.upload_dir":        {"UPLOAD_DIR"},
	"processing.processed_dir":     {"PROCESSED_DIR"},
	"processing.temp_dir":          {"TEMP_DIR"},
	"database.vector_db_path":      {"VECTOR_DB_PATH"},
	"database.metadata_db_path":    {"METADATA_DB_PATH"},
	"models.qa.api_key":            {"ANTHROPIC_API_KEY"},
}

// Setup points v at the config file and environment. cfgFile overrides the
// search of ./research-assistant.yaml and ~/.config/research-assistant/.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key}, names...)
		_ = v.BindEnv(args...)
	}

	registerDefaults(v, "", reflect.ValueOf(types.DefaultConfig()))
}

// Load reads the configuration into a validated types.Config. A missing
// config file is only an error when cfgFile names it explicitly.
func Load(v *viper.Viper, cfgFile string, loaded map[string]string) (types.Config, error) {
	if err := loadDotEnv(DotEnvPath); err != nil {
		return types.Config{}, err
	}

	Setup(v, cfgFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	ApplySecrets(&cfg, loaded)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplySecrets fills credentials the file and environment left empty.
func ApplySecrets(cfg *types.Config, loaded map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = loaded[key]
		}
	}
	fill(&cfg.Models.QA.APIKey, secrets.AnthropicAPIKey)
	fill(&cfg.Research.OpenAlexEmail, secrets.OpenAlexEmail)
	fill(&cfg.Research.SemanticScholarAPIKey, secrets.SemanticScholarAPIKey)
	fill(&cfg.Database.WeaviateAPIKey, secrets.WeaviateAPIKey)
	fill(&cfg.API.JWTSecret, secrets.JWTSecret)
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// registerDefaults walks the default config by mapstructure tag so every
// leaf key is known to viper. AutomaticEnv only resolves known keys during
// Unmarshal.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		fv := val.Field(i)

		if opts == "squash" {
			registerDefaults(v, prefix, fv)
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
