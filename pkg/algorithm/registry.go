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

package algorithm

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/mroda88/trigger/pkg/isb"
)

// entry is a registered algorithm maker plus the version range of stage
// configuration schemas it accepts.
type entry[A isb.Element, B isb.Element] struct {
	make          Maker[A, B]
	acceptedRange *semver.Constraints
}

// Registry maps algorithm names to factories. The stage holds the
// instance the factory builds by exclusive ownership and destroys it on
// stop; a new instance is built on every start so no state leaks across
// runs (see Build).
type Registry[A isb.Element, B isb.Element] struct {
	mu     sync.RWMutex
	makers map[string]entry[A, B]
}

// NewRegistry returns an empty Registry.
func NewRegistry[A isb.Element, B isb.Element]() *Registry[A, B] {
	return &Registry[A, B]{
		makers: make(map[string]entry[A, B]),
	}
}

// Register adds a named algorithm factory. acceptedVersionRange is a
// semver constraint (e.g. ">= 1.0.0, < 2.0.0") describing which
// configuration schema versions the maker understands; pass "" to accept
// any version. Registering the same name twice replaces the factory.
func (r *Registry[A, B]) Register(name string, make Maker[A, B], acceptedVersionRange string) error {
	var constraints *semver.Constraints
	if acceptedVersionRange != "" {
		c, err := semver.NewConstraint(acceptedVersionRange)
		if err != nil {
			return fmt.Errorf("algorithm %q: invalid version constraint %q: %w", name, acceptedVersionRange, err)
		}
		constraints = c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.makers[name] = entry[A, B]{make: make, acceptedRange: constraints}
	return nil
}

// Build constructs a fresh Algorithm instance for name, validating
// configVersion (if non-empty and the factory declared a constraint)
// before calling the maker.
func (r *Registry[A, B]) Build(name string, configVersion string, config map[string]any) (Algorithm[A, B], error) {
	r.mu.RLock()
	e, ok := r.makers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("algorithm %q is not registered", name)
	}
	if e.acceptedRange != nil && configVersion != "" {
		v, err := semver.NewVersion(configVersion)
		if err != nil {
			return nil, fmt.Errorf("algorithm %q: invalid config version %q: %w", name, configVersion, err)
		}
		if !e.acceptedRange.Check(v) {
			return nil, fmt.Errorf("algorithm %q: config version %s not accepted by this build", name, configVersion)
		}
	}
	return e.make(config)
}
