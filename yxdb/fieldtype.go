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

package yxdb

import (
	"strconv"
	"strings"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/metadata"
)

type FieldType int16

const (
	SpatialObj   FieldType = 1
	Blob         FieldType = 2
	String       FieldType = 3
	VString      FieldType = 4
	WString      FieldType = 5
	VWString     FieldType = 6
	Bool         FieldType = 7
	Byte         FieldType = 8
	Int16        FieldType = 9
	Int32        FieldType = 10
	Int64        FieldType = 11
	Float        FieldType = 12
	Double       FieldType = 13
	FixedDecimal FieldType = 14
	Date         FieldType = 15
	Time         FieldType = 16
	DateTime     FieldType = 17
)

var fieldTypeNames = map[FieldType]string{
	SpatialObj:   "SpatialObj",
	Blob:         "Blob",
	String:       "String",
	VString:      "V_String",
	WString:      "WString",
	VWString:     "V_WString",
	Bool:         "Boolean",
	Byte:         "Byte",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Float:        "Float",
	Double:       "Double",
	FixedDecimal: "Fixed Decimal",
	Date:         "Date",
	Time:         "Time",
	DateTime:     "DateTime",
}

var fieldTypesByKey = func() map[string]FieldType {
	m := make(map[string]FieldType, len(fieldTypeNames))
	for ft, name := range fieldTypeNames {
		m[lookupKey(name)] = ft
	}
	return m
}()

// String returns the name of the type as the yxdb metadata context spells
// it.
func (ft FieldType) String() string {
	if name, ok := fieldTypeNames[ft]; ok {
		return name
	}
	return "FieldType(" + strconv.Itoa(int(ft)) + ")"
}

// HasLength reports whether values of the type carry a declared size.
func (ft FieldType) HasLength() bool {
	switch ft {
	case String, VString, WString, VWString, FixedDecimal:
		return true
	}
	return false
}

func lookupKey(name string) string {
	key := strings.ReplaceAll(strings.ToLower(name), " ", "")
	if key == "boolean" {
		key = "bool"
	}
	return key
}

// LookupFieldType finds a type by name, ignoring case and spaces, so that
// "Fixed Decimal", "fixeddecimal" and "FIXED DECIMAL" are the same type.
// "Boolean" and "Bool" both name Bool. errs may be nil.
func LookupFieldType(errs *driverbase.ErrorHelper, name string) (FieldType, error) {
	if ft, ok := fieldTypesByKey[lookupKey(name)]; ok {
		return ft, nil
	}
	return 0, helper(errs).LookupError("unknown yxdb field type %q", name)
}

// FieldOf builds the declaration of a column from its yxdb context type and
// length. errs may be nil.
func FieldOf(errs *driverbase.ErrorHelper, name string, tl metadata.TypeLength) (Field, error) {
	ft, err := LookupFieldType(errs, tl.Type)
	if err != nil {
		return Field{}, err
	}
	f := Field{Name: name, Type: ft}
	switch len(tl.Length) {
	case 0:
	case 1:
		f.Size = tl.Length[0]
	case 2:
		f.Size, f.Scale = tl.Length[0], tl.Length[1]
	default:
		return Field{}, helper(errs).ValidationError("field %q: length %v has too many elements", name, tl.Length)
	}
	return f, nil
}

// TypeLength is the inverse of FieldOf. Types without a declared size get
// an empty length.
func (f Field) TypeLength() metadata.TypeLength {
	tl := metadata.TypeLength{Type: f.Type.String()}
	switch {
	case f.Type == FixedDecimal:
		tl.Length = metadata.Length{f.Size, f.Scale}
	case f.Type.HasLength():
		tl.Length = metadata.Length{f.Size}
	}
	return tl
}
