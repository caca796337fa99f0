// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the small set of environment options librarian
// recognizes: provider ids, bootstrap mode, governor limits and worker
// cap. A YAML file
// supplies defaults; environment variables override it field-by-field, the
// way layered config usually works: environment over file over defaults.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// BootstrapMode selects full vs. incremental indexing.
type BootstrapMode string

const (
	ModeFull        BootstrapMode = "full"
	ModeIncremental BootstrapMode = "incremental"
)

// Config is the full set of environment options recognized by librarian.
type Config struct {
	LLMProviderID   string        `yaml:"llm_provider_id"`
	LLMModelID      string        `yaml:"llm_model_id"`
	CheapModelID    string        `yaml:"cheap_model_id"`
	EmbeddingModel  string        `yaml:"embedding_model_id"`
	BootstrapMode   BootstrapMode `yaml:"bootstrap_mode"`
	WorkerCap       int           `yaml:"worker_cap"`
	DisableSynth    bool          `yaml:"-"`
	Governor        GovernorLimits `yaml:"governor"`
	StorageDir      string        `yaml:"storage_dir"`
	WeaviateURL     string        `yaml:"weaviate_url"`
	LogDir          string        `yaml:"log_dir"`
}

// GovernorLimits mirrors the governor's six-counter budget. A zero value
// for any field means "unlimited".
type GovernorLimits struct {
	TokensPerFile int64 `yaml:"tokens_per_file"`
	TokensPerPhase int64 `yaml:"tokens_per_phase"`
	TokensPerRun  int64 `yaml:"tokens_per_run"`
	FilesPerPhase int64 `yaml:"files_per_phase"`
	WallTimeMS    int64 `yaml:"wall_time_ms"`
	MaxRetries    int64 `yaml:"max_retries"`
}

// Default returns the out-of-the-box configuration: full bootstrap, no
// governor limits (unlimited, per the "0 means unlimited" rule), worker
// cap auto-detected.
func Default() Config {
	return Config{
		LLMProviderID:  "openai",
		LLMModelID:     "gpt-4o",
		CheapModelID:   "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		BootstrapMode:  ModeFull,
		WorkerCap:      0,
		StorageDir:     "./.librarian/store",
		LogDir:         "~/.librarian/logs",
	}
}

// Load reads a YAML file (if path is non-empty and exists) over Default(),
// then applies recognized environment variable overrides. Load never
// fails on a missing file — a missing config is not an error, it just
// means defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LIBRARIAN_LLM_PROVIDER"); v != "" {
		cfg.LLMProviderID = v
	}
	if v := os.Getenv("LIBRARIAN_LLM_MODEL"); v != "" {
		cfg.LLMModelID = v
	}
	if v := os.Getenv("LIBRARIAN_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("LIBRARIAN_BOOTSTRAP_MODE"); v != "" {
		cfg.BootstrapMode = BootstrapMode(v)
	}
	if v := os.Getenv("LIBRARIAN_WORKER_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerCap = n
		}
	}
	if v := os.Getenv("LIBRARIAN_QUERY_DISABLE_SYNTHESIS"); v == "1" {
		cfg.DisableSynth = true
	}
	if v := os.Getenv("LIBRARIAN_WEAVIATE_URL"); v != "" {
		cfg.WeaviateURL = v
	}
	if v := os.Getenv("LIBRARIAN_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
}
