// Copyright 2025 Emrys Liu
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// lookupEncoding resolves a configured charset name (gbk, latin1, ...)
// to a text encoding. UTF-8 and empty resolve to nil, meaning no
// conversion.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, errors.Errorf("unsupported encoding: %s", name)
	}
	return enc, nil
}

// decodeName converts a server-encoded filename to UTF-8.
func decodeName(enc encoding.Encoding, s string) string {
	if enc == nil {
		return s
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// encodeName converts a UTF-8 path to the server charset.
func encodeName(enc encoding.Encoding, s string) string {
	if enc == nil {
		return s
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return out
}
