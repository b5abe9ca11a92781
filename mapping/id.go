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

package mapping

import (
	"math"
	"reflect"

	"go.chromium.org/gcpdata"
)

// ConvertID converts a raw identifier into int64 or string.
//
// Integer kinds become int64 and string kinds become string, named types
// included. Non-nil pointers are dereferenced. Every other type, native keys
// of either store among them, fails with gcpdata.ErrDataMapping. nil fails
// with gcpdata.ErrIllegalArgument.
//
// Native store keys are not handled here: the store packages pass them
// through before calling ConvertID.
func ConvertID(id any) (any, error) {
	if id == nil {
		return nil, gcpdata.IllegalArgumentErrorf("nil id")
	}

	rv := reflect.ValueOf(id)
	switch k := rv.Kind(); {
	case isInt(k):
		return rv.Int(), nil
	case isUint(k):
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, gcpdata.DataMappingErrorf("id %d overflows int64", u)
		}
		return int64(u), nil
	case k == reflect.String:
		return rv.String(), nil
	}

	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, gcpdata.IllegalArgumentErrorf("nil %T id", id)
		}
		return ConvertID(rv.Elem().Interface())
	}
	return nil, gcpdata.DataMappingErrorf("id type %T not supported: must be convertible to an integer or a string", id)
}
