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

// Widths shared by several tables.
const (
	MaxStringLength  = 2147483647
	MaxSpatialLength = 536870911
)

type targets = map[Context][]string

func yxdbTable() Table {
	return Table{
		Context: YXDB,
		Syntax:  FieldSyntax,
		Types: []TypeDef{
			{Name: "SpatialObj", Targets: targets{SQLite: {"AlteryxSpatialObjectBlob"}, Arrow: {"geometry"}}, Default: Length{MaxSpatialLength}},
			{Name: "Blob", Targets: targets{SQLite: {"Blob"}, Arrow: {"binary"}}, Default: Length{MaxStringLength}},
			{Name: "String", Targets: targets{SQLite: {"CHAR"}, Arrow: {"utf8"}, Scalar: {"string"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "V_String", Targets: targets{SQLite: {"varchar"}, Arrow: {"utf8"}, Scalar: {"string"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "WString", Targets: targets{SQLite: {"nchar"}, Arrow: {"utf8"}, Scalar: {"string"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "V_WString", Targets: targets{SQLite: {"nvarchar", "TEXT"}, Arrow: {"utf8"}, Scalar: {"string"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "Boolean", Targets: targets{SQLite: {"boolean"}, Arrow: {"bool"}, Scalar: {"bool"}}, Default: Length{1}},
			{Name: "Byte", Targets: targets{SQLite: {"tinyint unsigned"}, Arrow: {"uint8"}, Scalar: {"int"}}, Default: Length{1}},
			{Name: "Int16", Targets: targets{SQLite: {"smallint"}, Arrow: {"int16"}, Scalar: {"int"}}, Default: Length{2}},
			{Name: "Int32", Targets: targets{SQLite: {"int"}, Arrow: {"int32"}, Scalar: {"int"}}, Default: Length{4}},
			{Name: "Int64", Targets: targets{SQLite: {"bigint", "INTEGER"}, Arrow: {"int64"}, Scalar: {"int"}}, Default: Length{8}},
			{Name: "Float", Targets: targets{SQLite: {"float"}, Arrow: {"float32"}, Scalar: {"float"}}, Default: Length{4}},
			{Name: "Double", Targets: targets{SQLite: {"double", "REAL"}, Arrow: {"float64"}, Scalar: {"float"}}, Default: Length{8}},
			{Name: "Fixed Decimal", Targets: targets{SQLite: {"decimal"}, Arrow: {"decimal128"}, Scalar: {"float"}}, Arity: 2, Default: Length{19, 6}},
			{Name: "Date", Targets: targets{SQLite: {"date"}, Arrow: {"date32"}}, Default: Length{8}},
			{Name: "Time", Targets: targets{SQLite: {"time"}, Arrow: {"time64"}}, Default: Length{10}},
			{Name: "DateTime", Targets: targets{SQLite: {"datetime"}, Arrow: {"timestamp"}}, Default: Length{19}},
		},
	}
}

// sqlite types without a width still carry their storage width as default so
// that a conversion into the cache reports the size of the source type.
func sqliteTable() Table {
	return Table{
		Context: SQLite,
		Syntax:  LiteralSyntax,
		Types: []TypeDef{
			{Name: "AlteryxSpatialObjectBlob", Targets: targets{YXDB: {"SpatialObj"}, Arrow: {"geometry"}}, Default: Length{MaxSpatialLength}},
			{Name: "Blob", Targets: targets{YXDB: {"Blob"}, Arrow: {"binary"}}, Default: Length{MaxStringLength}},
			{Name: "CHAR", Targets: targets{YXDB: {"String"}, Arrow: {"utf8"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "varchar", Targets: targets{YXDB: {"V_String"}, Arrow: {"utf8"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "nchar", Targets: targets{YXDB: {"WString"}, Arrow: {"utf8"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "nvarchar", Targets: targets{YXDB: {"V_WString"}, Arrow: {"utf8"}}, Arity: 1, Default: Length{MaxStringLength}},
			{Name: "TEXT", Targets: targets{YXDB: {"V_WString"}, Arrow: {"utf8"}}, Default: Length{MaxStringLength}},
			{Name: "boolean", Targets: targets{YXDB: {"Boolean"}, Arrow: {"bool"}}, Default: Length{1}},
			{Name: "tinyint unsigned", Targets: targets{YXDB: {"Byte"}, Arrow: {"uint8"}}, Default: Length{1}},
			{Name: "smallint", Targets: targets{YXDB: {"Int16"}, Arrow: {"int16"}}, Default: Length{2}},
			{Name: "int", Targets: targets{YXDB: {"Int32"}, Arrow: {"int32"}}, Default: Length{4}},
			{Name: "bigint", Targets: targets{YXDB: {"Int64"}, Arrow: {"int64"}}, Default: Length{8}},
			{Name: "INTEGER", Targets: targets{YXDB: {"Int64"}, Arrow: {"int64"}}, Default: Length{8}},
			{Name: "float", Targets: targets{YXDB: {"Float"}, Arrow: {"float32"}}, Default: Length{4}},
			{Name: "double", Targets: targets{YXDB: {"Double"}, Arrow: {"float64"}}, Default: Length{8}},
			{Name: "REAL", Targets: targets{YXDB: {"Double"}, Arrow: {"float64"}}, Default: Length{8}},
			{Name: "decimal", Targets: targets{YXDB: {"Fixed Decimal"}, Arrow: {"decimal128"}}, Arity: 2, Default: Length{19, 6}},
			{Name: "date", Targets: targets{YXDB: {"Date"}, Arrow: {"date32"}}, Default: Length{8}},
			{Name: "time", Targets: targets{YXDB: {"Time"}, Arrow: {"time64"}}, Default: Length{10}},
			{Name: "datetime", Targets: targets{YXDB: {"DateTime"}, Arrow: {"timestamp"}}, Default: Length{19}},
		},
	}
}

func arrowTable() Table {
	return Table{
		Context: Arrow,
		Syntax:  LiteralSyntax,
		Types: []TypeDef{
			{Name: "bool", Targets: targets{YXDB: {"Boolean"}, SQLite: {"boolean"}, Scalar: {"bool"}}},
			{Name: "uint8", Targets: targets{YXDB: {"Byte"}, SQLite: {"tinyint unsigned"}, Scalar: {"int"}}},
			{Name: "int16", Targets: targets{YXDB: {"Int16"}, SQLite: {"smallint"}, Scalar: {"int"}}},
			{Name: "int32", Targets: targets{YXDB: {"Int32"}, SQLite: {"int"}, Scalar: {"int"}}},
			{Name: "int64", Targets: targets{YXDB: {"Int64"}, SQLite: {"bigint"}, Scalar: {"int"}}},
			{Name: "float32", Targets: targets{YXDB: {"Float"}, SQLite: {"float"}, Scalar: {"float"}}},
			{Name: "float64", Targets: targets{YXDB: {"Double"}, SQLite: {"double"}, Scalar: {"float"}}},
			{Name: "decimal128", Targets: targets{YXDB: {"Fixed Decimal"}, SQLite: {"decimal"}, Scalar: {"float"}}, Arity: 2, Default: Length{19, 6}},
			{Name: "utf8", Targets: targets{YXDB: {"V_WString"}, SQLite: {"TEXT"}, Scalar: {"string"}}},
			{Name: "binary", Targets: targets{YXDB: {"Blob"}, SQLite: {"Blob"}}},
			{Name: "geometry", Targets: targets{YXDB: {"SpatialObj"}, SQLite: {"AlteryxSpatialObjectBlob"}}},
			{Name: "date32", Targets: targets{YXDB: {"Date"}, SQLite: {"date"}}},
			{Name: "time64", Targets: targets{YXDB: {"Time"}, SQLite: {"time"}}},
			{Name: "timestamp", Targets: targets{YXDB: {"DateTime"}, SQLite: {"datetime"}}},
		},
	}
}

func scalarTable() Table {
	return Table{
		Context: Scalar,
		Syntax:  LiteralSyntax,
		Types: []TypeDef{
			{Name: "bool", Targets: targets{YXDB: {"Boolean"}, Arrow: {"bool"}}},
			{Name: "int", Targets: targets{YXDB: {"Int64", "Int32", "Int16", "Byte", "Boolean"}, Arrow: {"int64"}}},
			{Name: "float", Targets: targets{YXDB: {"Float", "Double", "Fixed Decimal"}, Arrow: {"float64"}}},
			{Name: "string", Targets: targets{YXDB: {"V_WString", "V_String", "WString", "String"}, Arrow: {"utf8"}}},
		},
	}
}

// BuiltinTables returns fresh copies of the built-in type tables.
func BuiltinTables() []Table {
	return []Table{yxdbTable(), sqliteTable(), arrowTable(), scalarTable()}
}

var defaultRegistry = NewRegistry(BuiltinTables()...)

// DefaultRegistry returns the registry of built-in types.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
