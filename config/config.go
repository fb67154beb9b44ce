// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
// Every tunable the conversion pipeline depends on lives here and is
// passed down explicitly; nothing reads ambient state at request time.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Convert ConvertConfig `mapstructure:"convert"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Scratch ScratchConfig `mapstructure:"scratch"`
}

type ServerConfig struct {
	// Addr is the listen address for the HTTP API.
	Addr string `mapstructure:"addr"`
	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// ShutdownTimeout bounds graceful shutdown once the done context fires.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LimitsConfig struct {
	// MaxItems is the combined cap on files plus URLs per request.
	MaxItems int `mapstructure:"max_items"`
	// MaxItemBytes is the per-item size cap, enforced while copying.
	MaxItemBytes int64 `mapstructure:"max_item_bytes"`
}

type ConvertConfig struct {
	// BatchRows is the number of rows processed per batch.
	BatchRows int `mapstructure:"batch_rows"`
	// SampleRows is the leading-sample window for schema inference and
	// NDJSON header key union.
	SampleRows int `mapstructure:"sample_rows"`
	// ChunkBytes sizes the copy buffer used when streaming staged output.
	ChunkBytes int `mapstructure:"chunk_bytes"`
}

type FetchConfig struct {
	// Timeout bounds connect plus total transfer for one remote fetch.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRedirects bounds redirect-following depth.
	MaxRedirects int `mapstructure:"max_redirects"`
}

type ScratchConfig struct {
	// Root is the private staging directory. Empty means a per-process
	// directory under the OS temp dir.
	Root string `mapstructure:"root"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 30 * time.Second,
		},
		Limits: LimitsConfig{
			MaxItems:     5,
			MaxItemBytes: 500 * 1024 * 1024,
		},
		Convert: ConvertConfig{
			BatchRows:  1000,
			SampleRows: 1000,
			ChunkBytes: 64 * 1024,
		},
		Fetch: FetchConfig{
			Timeout:      2 * time.Minute,
			MaxRedirects: 5,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "TABLECONV" and the dot character
// in keys is replaced by an underscore. For example, "limits.max_items"
// becomes "TABLECONV_LIMITS_MAX_ITEMS".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TABLECONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if o := v.GetString("server.cors_origins"); o != "" {
		cfg.Server.CORSOrigins = strings.Split(o, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Limits.MaxItems <= 0 {
		return fmt.Errorf("limits.max_items must be positive, got %d", c.Limits.MaxItems)
	}
	if c.Limits.MaxItemBytes <= 0 {
		return fmt.Errorf("limits.max_item_bytes must be positive, got %d", c.Limits.MaxItemBytes)
	}
	if c.Convert.BatchRows <= 0 {
		return fmt.Errorf("convert.batch_rows must be positive, got %d", c.Convert.BatchRows)
	}
	if c.Convert.SampleRows <= 0 {
		return fmt.Errorf("convert.sample_rows must be positive, got %d", c.Convert.SampleRows)
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must not be negative, got %d", c.Fetch.MaxRedirects)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
