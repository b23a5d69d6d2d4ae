// Copyright 2022 RelationalAI, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads rankgrid settings from an ini file of named profile
// stanzas.
package config

import (
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const DefaultConfigFile = "~/.rankgrid/config"
const DefaultConfigProfile = "default"

type Config struct {
	Root         string   `json:"root"`
	Table        string   `json:"table"`
	Field        string   `json:"field"`
	LispDir      string   `json:"lisp_dir"`
	Prefix       string   `json:"prefix"`
	Format       string   `json:"format"`
	LogLevel     string   `json:"log_level"`
	Workers      int      `json:"workers"`
	KeepTogether []string `json:"keep_together"`
}

// Expand the given file path if it start with a ~/
func expandUser(fname string) (string, error) {
	if strings.HasPrefix(fname, "~/") {
		usr, err := user.Current()
		if err != nil {
			return "", err
		}
		return path.Join(usr.HomeDir, fname[2:]), nil
	}
	return fname, nil
}

// Load the named stanza from the source.
// Source can be either filename or config string
func loadStanza(source interface{}, profile string) (*ini.Section, error) {
	info, err := ini.Load(source)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading config")
	}
	if !info.HasSection(profile) {
		return nil, errors.Errorf("config profile '%s' not found", profile)
	}
	return info.Section(profile), nil
}

// Values present in the stanza replace the corresponding fields of cfg,
// absent ones leave them alone.
func parseConfigStanza(stanza *ini.Section, cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"root", &cfg.Root},
		{"table", &cfg.Table},
		{"field", &cfg.Field},
		{"lisp_dir", &cfg.LispDir},
		{"prefix", &cfg.Prefix},
		{"format", &cfg.Format},
		{"log_level", &cfg.LogLevel},
	}
	for _, s := range strs {
		if v := stanza.Key(s.key).String(); v != "" {
			*s.dst = v
		}
	}
	if stanza.HasKey("workers") {
		n, err := stanza.Key("workers").Int()
		if err != nil {
			return errors.Wrapf(err, "invalid workers value '%s'", stanza.Key("workers").String())
		}
		if n < 1 {
			return errors.Errorf("workers must be positive, got %d", n)
		}
		cfg.Workers = n
	}
	if stanza.HasKey("keep_together") {
		cfg.KeepTogether = stanza.Key("keep_together").Strings(",")
	}
	return nil
}

// Load settings from the default profile of the default config file.
func LoadConfig(cfg *Config) error {
	return LoadConfigFile(DefaultConfigFile, DefaultConfigProfile, cfg)
}

// Load settings from the given profile of the provided config source.
func LoadConfigString(source, profile string, cfg *Config) error {
	stanza, err := loadStanza([]byte(source), profile)
	if err != nil {
		return err
	}
	return parseConfigStanza(stanza, cfg)
}

// Load settings from the given profile of the named config file. A missing
// file leaves cfg unchanged.
func LoadConfigFile(fname, profile string, cfg *Config) error {
	fname, err := expandUser(fname)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fname); os.IsNotExist(err) {
		return nil
	}
	stanza, err := loadStanza(fname, profile)
	if err != nil {
		return errors.Wrapf(err, "config '%s'", fname)
	}
	return parseConfigStanza(stanza, cfg)
}
