/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
)

// InitCmd binds the stage to its connection table entries (spec.md §6).
type InitCmd struct {
	InputConn  string `json:"input_conn"`
	OutputConn string `json:"output_conn"`
}

// ConfCmd carries the algorithm-specific sub-object, stashed opaquely
// until the next start.
type ConfCmd struct {
	AlgorithmName    string          `json:"algorithm_name"`
	AlgorithmVersion string          `json:"algorithm_version"`
	AlgorithmConfig  json.RawMessage `json:"algorithm_config"`
}

// StartCmd carries nothing beyond the command itself: start constructs
// the algorithm from the most recent ConfCmd and launches the worker.
type StartCmd struct{}

// StopCmd optionally overrides the drop-partial-outputs drain policy.
type StopCmd struct {
	Drop *bool `json:"drop,omitempty"`
}

// ScrapCmd tears down configuration artifacts; spec.md §6 marks it
// optional and leaves its payload unspecified beyond the command name.
type ScrapCmd struct{}

// DecodeCmd unmarshals a lifecycle command payload into dst using
// goccy/go-json, matching the rest of the stack's JSON codec choice.
func DecodeCmd(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode command payload: %w", err)
	}
	return nil
}

// AlgorithmConfigCache caches decoded algorithm-specific config
// sub-objects, keyed by their raw JSON representation. A ConfCmd's
// AlgorithmConfig is decoded once and reused across repeated conf/start
// cycles with the same payload; unlike caching the algorithm instance
// itself, this carries no runtime state, so reuse does not violate the
// "fresh algorithm instance on every start" invariant.
type AlgorithmConfigCache struct {
	cache *lru.Cache[string, map[string]any]
}

// NewAlgorithmConfigCache returns a cache holding up to size decoded
// config blobs.
func NewAlgorithmConfigCache(size int) (*AlgorithmConfigCache, error) {
	c, err := lru.New[string, map[string]any](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create algorithm config cache: %w", err)
	}
	return &AlgorithmConfigCache{cache: c}, nil
}

// Decode returns the decoded config for raw, populating the cache on a
// miss.
func (c *AlgorithmConfigCache) Decode(raw json.RawMessage) (map[string]any, error) {
	key := string(raw)
	if cfg, ok := c.cache.Get(key); ok {
		return cfg, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode algorithm config: %w", err)
	}
	c.cache.Add(key, cfg)
	return cfg, nil
}
