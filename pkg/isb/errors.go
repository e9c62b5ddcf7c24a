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

package isb

import "fmt"

// OutOfOrderSetsErr is raised when a payload Set arrives with an earlier
// start_time than the previously seen payload, or when a flushed slice's
// end_time runs past a heartbeat's start_time. Fatal reports which of the
// two triggers fired; both are absorbed, never dropped.
type OutOfOrderSetsErr struct {
	Fatal     bool
	PrevStart Tick
	CurrStart Tick
	Message   string
}

func (e OutOfOrderSetsErr) Error() string {
	return fmt.Sprintf("OutOfOrderSets(fatal=%t): %s (prev=%d curr=%d)", e.Fatal, e.Message, e.PrevStart, e.CurrStart)
}

// UnknownSetErr is raised when a Set arrives with Type == Unknown.
type UnknownSetErr struct {
	Origin Origin
}

func (e UnknownSetErr) Error() string {
	return fmt.Sprintf("UnknownSetError: set from %s/%d has unknown type", e.Origin.Subsystem, e.Origin.ElementID)
}
