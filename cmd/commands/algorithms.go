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

package commands

import (
	"fmt"

	"github.com/mroda88/trigger/pkg/algorithm"
	"github.com/mroda88/trigger/pkg/testproducer"
)

// builtinAlgorithms is the set of trigger algorithms this binary can
// build by name. Concrete trigger algorithms are the stage's pluggable
// collaborator (spec.md §1 places them out of scope): these two exist
// only to exercise the CLI end to end.
func builtinAlgorithms() *algorithm.Registry[testproducer.TPRecord, testproducer.TPRecord] {
	reg := algorithm.NewRegistry[testproducer.TPRecord, testproducer.TPRecord]()
	if err := reg.Register("identity", algorithm.NewIdentityMaker[testproducer.TPRecord](), ">=0.0.0"); err != nil {
		panic(err)
	}
	if err := reg.Register("accumulator", algorithm.NewAccumulatorMaker[testproducer.TPRecord](), ">=0.0.0"); err != nil {
		panic(err)
	}
	return reg
}

func buildMaker(name string) (algorithm.Maker[testproducer.TPRecord, testproducer.TPRecord], error) {
	reg := builtinAlgorithms()
	return func(cfg map[string]any) (algorithm.Algorithm[testproducer.TPRecord, testproducer.TPRecord], error) {
		alg, err := reg.Build(name, "1.0.0", cfg)
		if err != nil {
			return nil, fmt.Errorf("unrecognized algorithm %q: %w", name, err)
		}
		return alg, nil
	}, nil
}
