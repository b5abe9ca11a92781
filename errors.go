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

import (
	"github.com/cockroachdb/errors"
)

// These errors classify failures produced by the templates themselves.
//
// Errors returned by the store clients are passed through untouched, so
// errors.Is checks against client errors (e.g. datastore.ErrConcurrentTransaction)
// keep working.
var (
	// ErrDataMapping is returned when an entity type lacks required mapping
	// metadata or an identifier can't be converted into a key.
	ErrDataMapping = errors.New("gcpdata: data mapping error")

	// ErrIllegalArgument is returned when an identifier field exists, but is
	// unset at save or delete time.
	ErrIllegalArgument = errors.New("gcpdata: illegal argument")

	// ErrTransactionSemantics is returned on attempts to nest transactions,
	// mutate inside read-only transactions or do stale reads inside read-write
	// transactions.
	ErrTransactionSemantics = errors.New("gcpdata: transaction semantics violation")
)

// DataMappingErrorf returns a new error marked as ErrDataMapping.
func DataMappingErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrDataMapping)
}

// IllegalArgumentErrorf returns a new error marked as ErrIllegalArgument.
func IllegalArgumentErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrIllegalArgument)
}

// TransactionSemanticsErrorf returns a new error marked as
// ErrTransactionSemantics.
func TransactionSemanticsErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrTransactionSemantics)
}
