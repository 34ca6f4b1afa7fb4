// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// canonicalize renders v (the result of json.Unmarshal into interface{}, or
// any of map[string]any/[]any/string/float64/bool/nil) as its canonical byte
// form: object keys sorted lexicographically at every level, nulls omitted,
// numbers in shortest round-trippable decimal, everything else as standard
// JSON. Both Sign and Verify call this over the same logical document so a
// signer and a verifier always agree on what was signed.
func canonicalize(v interface{}) ([]byte, error) {
	var b strings.Builder
	if err := writeCanonical(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeCanonical(b *strings.Builder, v interface{}) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
		return nil
	case map[string]interface{}:
		return writeCanonicalObject(b, t)
	case []interface{}:
		return writeCanonicalArray(b, t)
	case string:
		enc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		b.Write(enc)
		return nil
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return nil
	case float64:
		b.WriteString(formatNumber(t))
		return nil
	default:
		return fmt.Errorf("envelope: unsupported canonical value type %T", v)
	}
}

func writeCanonicalObject(b *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyEnc, err := json.Marshal(k)
		if err != nil {
			return err
		}
		b.Write(keyEnc)
		b.WriteByte(':')
		if err := writeCanonical(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeCanonicalArray(b *strings.Builder, a []interface{}) error {
	b.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeCanonical(b, v); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

// formatNumber renders f in its shortest round-trippable decimal form,
// falling back to plain integer form when f has no fractional part.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toCanonicalMap round-trips v through JSON into the generic
// map[string]interface{}/[]interface{}/scalar shape canonicalize expects.
func toCanonicalMap(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}
