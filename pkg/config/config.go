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

// Package config loads the stage's global configuration file and decodes
// the lifecycle command payloads (init/conf/start/stop/scrap) that drive
// it. Configuration keys match spec.md §6: heartbeat_interval,
// clock_frequency_hz, heartbeat_send_offset_ms, window_time, buffer_time,
// source_id, plus an opaque algorithm-specific sub-object.
package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GlobalConfig is the file-backed configuration every stage instance is
// bootstrapped from before any lifecycle command arrives.
type GlobalConfig struct {
	HeartbeatIntervalTicks uint64  `mapstructure:"heartbeat_interval"`
	ClockFrequencyHz       float64 `mapstructure:"clock_frequency_hz"`
	HeartbeatSendOffsetMs  uint64  `mapstructure:"heartbeat_send_offset_ms"`
	WindowTimeTicks        uint64  `mapstructure:"window_time"`
	BufferTimeTicks        uint64  `mapstructure:"buffer_time"`
	SourceID               uint32  `mapstructure:"source_id"`
}

// Defaults mirrors the defaults spec.md §6 documents.
func Defaults() GlobalConfig {
	return GlobalConfig{
		HeartbeatIntervalTicks: 5000,
		WindowTimeTicks:        625000,
		BufferTimeTicks:        0,
	}
}

// LoadConfig reads name.yaml from path, unmarshals it over the documented
// defaults, and watches the file for changes, invoking onErrorReloading
// if a reload fails to unmarshal.
func LoadConfig(path, name string, onErrorReloading func(error)) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file: %w", err)
	}
	r := Defaults()
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration file: %w", err)
	}
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.Unmarshal(&r); err != nil && onErrorReloading != nil {
			onErrorReloading(err)
		}
	})
	return &r, nil
}
