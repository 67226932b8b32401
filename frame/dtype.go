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

// Package frame converts between the "arrow" type context of the metadata
// registry and Arrow data types and values.
package frame

import (
	"fmt"
	"slices"

	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/apache/arrow-go/v18/arrow"
)

const (
	// MetaKeyExtensionName marks binary columns that hold geometries.
	MetaKeyExtensionName = "ARROW:extension:name"
	// ExtensionWKB is the extension name of well-known-binary geometries.
	ExtensionWKB = "geoarrow.wkb"

	MetaKeySourceType  = "datastream.source_type"
	MetaKeyLength      = "datastream.length"
	MetaKeySource      = "datastream.source"
	MetaKeyDescription = "datastream.description"
)

const maxDecimal128Precision = 38

// DataType returns the Arrow type for a type of the "arrow" context, plus
// any field metadata the type needs.
func DataType(tl metadata.TypeLength) (arrow.DataType, arrow.Metadata, error) {
	switch tl.Type {
	case "bool":
		return arrow.FixedWidthTypes.Boolean, arrow.Metadata{}, nil
	case "uint8":
		return arrow.PrimitiveTypes.Uint8, arrow.Metadata{}, nil
	case "int16":
		return arrow.PrimitiveTypes.Int16, arrow.Metadata{}, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, arrow.Metadata{}, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, arrow.Metadata{}, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, arrow.Metadata{}, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, arrow.Metadata{}, nil
	case "decimal128":
		precision, scale := int32(19), int32(6)
		if len(tl.Length) == 2 {
			precision, scale = int32(tl.Length[0]), int32(tl.Length[1])
		}
		if precision < 1 || precision > maxDecimal128Precision || scale > precision {
			return nil, arrow.Metadata{}, fmt.Errorf("invalid decimal precision/scale (%d, %d)", precision, scale)
		}
		return &arrow.Decimal128Type{Precision: precision, Scale: scale}, arrow.Metadata{}, nil
	case "utf8":
		return arrow.BinaryTypes.String, arrow.Metadata{}, nil
	case "binary":
		return arrow.BinaryTypes.Binary, arrow.Metadata{}, nil
	case "geometry":
		return arrow.BinaryTypes.Binary, arrow.NewMetadata([]string{MetaKeyExtensionName}, []string{ExtensionWKB}), nil
	case "date32":
		return arrow.FixedWidthTypes.Date32, arrow.Metadata{}, nil
	case "time64":
		return arrow.FixedWidthTypes.Time64us, arrow.Metadata{}, nil
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us, arrow.Metadata{}, nil
	default:
		return nil, arrow.Metadata{}, fmt.Errorf("no Arrow type for %q", tl.Type)
	}
}

// TypeOf returns the "arrow" context type of a field. Types outside the
// context are widened to the nearest type that holds every value.
func TypeOf(field arrow.Field) (metadata.TypeLength, error) {
	switch t := field.Type.(type) {
	case *arrow.BooleanType:
		return metadata.TypeLength{Type: "bool"}, nil
	case *arrow.Uint8Type:
		return metadata.TypeLength{Type: "uint8"}, nil
	case *arrow.Int8Type, *arrow.Int16Type:
		return metadata.TypeLength{Type: "int16"}, nil
	case *arrow.Uint16Type, *arrow.Int32Type:
		return metadata.TypeLength{Type: "int32"}, nil
	case *arrow.Uint32Type, *arrow.Int64Type:
		return metadata.TypeLength{Type: "int64"}, nil
	case *arrow.Float32Type:
		return metadata.TypeLength{Type: "float32"}, nil
	case *arrow.Float64Type:
		return metadata.TypeLength{Type: "float64"}, nil
	case arrow.DecimalType:
		if t.GetPrecision() > maxDecimal128Precision {
			return metadata.TypeLength{}, fmt.Errorf("column %q: decimal precision %d is too large", field.Name, t.GetPrecision())
		}
		return metadata.TypeLength{Type: "decimal128", Length: metadata.Length{int(t.GetPrecision()), int(t.GetScale())}}, nil
	case *arrow.StringType, *arrow.LargeStringType, *arrow.StringViewType:
		return metadata.TypeLength{Type: "utf8"}, nil
	case *arrow.BinaryType, *arrow.LargeBinaryType, *arrow.BinaryViewType, *arrow.FixedSizeBinaryType:
		if IsGeometry(field) {
			return metadata.TypeLength{Type: "geometry"}, nil
		}
		return metadata.TypeLength{Type: "binary"}, nil
	case *arrow.Date32Type, *arrow.Date64Type:
		return metadata.TypeLength{Type: "date32"}, nil
	case *arrow.Time32Type, *arrow.Time64Type:
		return metadata.TypeLength{Type: "time64"}, nil
	case *arrow.TimestampType:
		return metadata.TypeLength{Type: "timestamp"}, nil
	default:
		return metadata.TypeLength{}, fmt.Errorf("column %q: unsupported Arrow type %s", field.Name, field.Type)
	}
}

// IsGeometry reports whether a binary field carries WKB geometries.
func IsGeometry(field arrow.Field) bool {
	v, ok := field.Metadata.GetValue(MetaKeyExtensionName)
	return ok && v == ExtensionWKB
}

// FieldMetadata records where a column came from and its declared size.
type FieldMetadata struct {
	SourceType  string
	Length      metadata.Length
	Source      string
	Description string
}

// Field builds an Arrow field for a column of the "arrow" context.
func Field(name string, tl metadata.TypeLength, meta FieldMetadata) (arrow.Field, error) {
	dt, md, err := DataType(tl)
	if err != nil {
		return arrow.Field{}, fmt.Errorf("column %q: %w", name, err)
	}
	keys, values := slices.Clone(md.Keys()), slices.Clone(md.Values())
	add := func(k, v string) {
		if v != "" {
			keys = append(keys, k)
			values = append(values, v)
		}
	}
	add(MetaKeySourceType, meta.SourceType)
	if len(meta.Length) > 0 {
		add(MetaKeyLength, meta.Length.Literal())
	}
	add(MetaKeySource, meta.Source)
	add(MetaKeyDescription, meta.Description)
	return arrow.Field{
		Name:     name,
		Type:     dt,
		Nullable: true,
		Metadata: arrow.NewMetadata(keys, values),
	}, nil
}

// MetadataOf reads back what Field recorded.
func MetadataOf(field arrow.Field) FieldMetadata {
	var meta FieldMetadata
	meta.SourceType, _ = field.Metadata.GetValue(MetaKeySourceType)
	meta.Source, _ = field.Metadata.GetValue(MetaKeySource)
	meta.Description, _ = field.Metadata.GetValue(MetaKeyDescription)
	if v, ok := field.Metadata.GetValue(MetaKeyLength); ok {
		meta.Length, _ = metadata.ParseLength(v)
	}
	return meta
}
