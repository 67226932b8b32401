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

package datastream

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/adbc-drivers/datastream-go/metadata"
)

// constantPrefixes are the namespaces of host constants.
var constantPrefixes = []string{"Engine", "Question", "User"}

// WorkflowConstantNames returns the constant names, sorted.
func (s *Session) WorkflowConstantNames() []string {
	return slices.Sorted(maps.Keys(s.cfg.Constants))
}

// WorkflowConstants returns a copy of all constants.
func (s *Session) WorkflowConstants() map[string]any {
	return maps.Clone(s.cfg.Constants)
}

// WorkflowConstant returns the value of a constant such as
// "Engine.WorkflowDirectory". An unknown name is a ReferenceError that
// suggests the closest existing name, if any.
func (s *Session) WorkflowConstant(name string) (any, error) {
	if v, ok := s.cfg.Constants[name]; ok {
		return v, nil
	}
	if suggested := s.suggestConstant(name); suggested != "" {
		return nil, s.errs.ReferenceError("Unable to find workflow constant %s -- did you mean %q?", name, suggested)
	}
	return nil, s.errs.ReferenceError("Unable to find workflow constant %s -- double check the name and run the workflow again to refresh the constants", name)
}

func (s *Session) suggestConstant(name string) string {
	names := s.WorkflowConstantNames()
	byUpper := make(map[string]string, len(names))
	for _, n := range names {
		byUpper[strings.ToUpper(n)] = n
	}

	upper := strings.ToUpper(name)
	if n, ok := byUpper[upper]; ok {
		return n
	}
	for _, prefix := range constantPrefixes {
		if n, ok := byUpper[strings.ToUpper(prefix)+"."+upper]; ok {
			return n
		}
	}
	last := lastSegment(upper)
	for _, n := range names {
		if lastSegment(strings.ToUpper(n)) == last {
			return n
		}
	}
	return ""
}

func lastSegment(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}

// scalarType is the scalar context type of a constant value.
func scalarType(v any) (string, bool) {
	switch v.(type) {
	case bool:
		return "bool", true
	case int64:
		return "int", true
	case float64:
		return "float", true
	case string:
		return "string", true
	}
	return "", false
}

// ConstantType returns the yxdb type of a constant's value.
func (s *Session) ConstantType(name string) (metadata.TypeLength, error) {
	v, err := s.WorkflowConstant(name)
	if err != nil {
		return metadata.TypeLength{}, err
	}
	st, ok := scalarType(v)
	if !ok {
		return metadata.TypeLength{}, s.errs.TypeError("constant %q has unsupported type %T", name, v)
	}
	return s.tools.Convert(metadata.TypeLength{Type: st}, metadata.Scalar, metadata.YXDB)
}

// ConvertToType converts the text of a value to a scalar type: "bool",
// "int", "float" or "string". Booleans are read from their first letter:
// T or Y is true, F or N is false.
func (s *Session) ConvertToType(value string, scalar string) (any, error) {
	switch scalar {
	case "bool":
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			switch trimmed[0] {
			case 'T', 't', 'Y', 'y':
				return true, nil
			case 'F', 'f', 'N', 'n':
				return false, nil
			}
		}
		return nil, s.errs.ValueError("Unable to convert %q to bool", value)
	case "int":
		i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, s.errs.WrapValue(err, "Unable to convert %q to int", value)
		}
		return i, nil
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, s.errs.WrapValue(err, "Unable to convert %q to float", value)
		}
		return f, nil
	case "string":
		return value, nil
	}
	return nil, s.errs.LookupError("unknown scalar type %q, expected one of %v", scalar, s.tools.Registry().Types(metadata.Scalar))
}
