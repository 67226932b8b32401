// Copyright (c) 2025 ADBC Drivers Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metadata

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Length is a width (one element) or a precision and scale (two elements).
// An empty Length means the type takes no length.
type Length []int

func (l Length) Clone() Length {
	if l == nil {
		return nil
	}
	return slices.Clone(l)
}

func (l Length) Equal(other Length) bool {
	return slices.Equal(l, other)
}

// Literal renders the length in parenthesized form: "", "(n)" or "(p, s)".
func (l Length) Literal() string {
	switch len(l) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("(%d)", l[0])
	default:
		return fmt.Sprintf("(%d, %d)", l[0], l[1])
	}
}

// Field renders the length as a typed field: nil, an int, or a float64 made
// of the text "p.s". The float form cannot tell a scale of 1 from 10.
func (l Length) Field() any {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	default:
		f, err := strconv.ParseFloat(fmt.Sprintf("%d.%d", l[0], l[1]), 64)
		if err != nil {
			// unreachable for non-negative ints
			panic(err)
		}
		return f
	}
}

func (l Length) valid() bool {
	if len(l) > 2 {
		return false
	}
	for _, n := range l {
		if n < 0 {
			return false
		}
	}
	return true
}

var digitRuns = regexp.MustCompile(`\b\d+`)

// ParseLength collects the integer runs of s, so "(19, 6)" and "19.6" both
// give (19, 6). Runs that do not fit an int are reported as an error.
func ParseLength(s string) (Length, error) {
	runs := digitRuns.FindAllString(s, -1)
	l := make(Length, 0, len(runs))
	for _, run := range runs {
		n, err := strconv.Atoi(run)
		if err != nil {
			return nil, err
		}
		l = append(l, n)
	}
	return l, nil
}

// FieldText is the text a typed-field length contributes to a type string.
// Float lengths keep their fractional digit, so 19.0 stays "19.0".
func FieldText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case float64:
		return floatText(v)
	default:
		return fmt.Sprint(v)
	}
}

// floatText renders v with at least one fractional digit, so that 19.0
// keeps its zero scale.
func floatText(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}
