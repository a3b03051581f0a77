// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bridge implements the OTLP <-> OTAP bridge of spec section 4.5:
// schema-guided decode from OTLP proto messages into OTAP record groups,
// and a stateful encoder back to OTLP, including the typed attribute value
// <-> Arrow column mapping and its CBOR fallback for nested values.
package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// toCBORNative converts a pcommon.Value into the CBOR library's native Go
// representation so nested values round-trip through the "ser" column (spec
// section 4.5: "ser -> CBOR decoded and re-emitted as the appropriate
// AnyValue variant. Nested CBOR (array, map) recurses.").
func toCBORNative(v pcommon.Value) interface{} {
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return v.Str()
	case pcommon.ValueTypeInt:
		return v.Int()
	case pcommon.ValueTypeDouble:
		return v.Double()
	case pcommon.ValueTypeBool:
		return v.Bool()
	case pcommon.ValueTypeBytes:
		return v.Bytes().AsRaw()
	case pcommon.ValueTypeSlice:
		s := v.Slice()
		out := make([]interface{}, s.Len())
		for i := 0; i < s.Len(); i++ {
			out[i] = toCBORNative(s.At(i))
		}
		return out
	case pcommon.ValueTypeMap:
		m := v.Map()
		out := make(map[string]interface{}, m.Len())
		m.Range(func(k string, vv pcommon.Value) bool {
			out[k] = toCBORNative(vv)
			return true
		})
		return out
	default:
		return nil
	}
}

// encodeSer CBOR-marshals v's nested representation for storage in the
// "ser" attribute column.
func encodeSer(v pcommon.Value) ([]byte, error) {
	return cbor.Marshal(toCBORNative(v))
}

// decodeSer CBOR-decodes raw and rebuilds the equivalent pcommon.Value,
// recursing into arrays and maps (spec section 4.5).
func decodeSer(raw []byte) (pcommon.Value, error) {
	var native interface{}
	if err := cbor.Unmarshal(raw, &native); err != nil {
		return pcommon.Value{}, &otaperrors.RuntimeError{Kind: otaperrors.IOError, Err: err}
	}
	return nativeToValue(native)
}

// nativeToValue converts the CBOR library's decoded representation back
// into a pcommon.Value. Map keys that are not already strings are
// coerced via fmt.Sprint rather than rejected, since OTLP AnyValue maps
// are always string-keyed and CBOR's generic map type is not.
func nativeToValue(native interface{}) (pcommon.Value, error) {
	switch x := native.(type) {
	case nil:
		return pcommon.NewValueEmpty(), nil
	case string:
		return pcommon.NewValueStr(x), nil
	case bool:
		return pcommon.NewValueBool(x), nil
	case int64:
		return pcommon.NewValueInt(x), nil
	case uint64:
		return pcommon.NewValueInt(int64(x)), nil
	case float64:
		return pcommon.NewValueDouble(x), nil
	case []byte:
		v := pcommon.NewValueBytes()
		v.Bytes().FromRaw(x)
		return v, nil
	case []interface{}:
		v := pcommon.NewValueSlice()
		s := v.Slice()
		for _, elem := range x {
			ev, err := nativeToValue(elem)
			if err != nil {
				return pcommon.Value{}, err
			}
			ev.CopyTo(s.AppendEmpty())
		}
		return v, nil
	case map[interface{}]interface{}:
		v := pcommon.NewValueMap()
		m := v.Map()
		for k, elem := range x {
			ev, err := nativeToValue(elem)
			if err != nil {
				return pcommon.Value{}, err
			}
			ev.CopyTo(m.PutEmpty(fmt.Sprint(k)))
		}
		return v, nil
	case map[string]interface{}:
		v := pcommon.NewValueMap()
		m := v.Map()
		for k, elem := range x {
			ev, err := nativeToValue(elem)
			if err != nil {
				return pcommon.Value{}, err
			}
			ev.CopyTo(m.PutEmpty(k))
		}
		return v, nil
	default:
		return pcommon.Value{}, &otaperrors.RuntimeError{
			Kind: otaperrors.UnsupportedSerializedAttributeValue,
			Err:  fmt.Errorf("bridge: unsupported CBOR-decoded attribute value of type %T", native),
		}
	}
}
