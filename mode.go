// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcpdata

// Mode is the execution mode of a template.
//
// A template starts as Standalone. Entering a transaction produces a new,
// scoped template in ReadWrite or ReadOnly mode; a scoped template never
// changes its mode and can't open further transactions.
type Mode int

const (
	// Standalone templates run each operation as its own unit of work.
	Standalone Mode = iota
	// ReadWrite templates buffer mutations into a read-write transaction.
	ReadWrite
	// ReadOnly templates read from a snapshot and refuse mutations.
	ReadOnly
)

func (m Mode) String() string {
	switch m {
	case Standalone:
		return "standalone"
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	default:
		return "unknown"
	}
}

// Scoped is true for modes bound to a transaction.
func (m Mode) Scoped() bool {
	return m != Standalone
}
