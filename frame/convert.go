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

package frame

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"
)

// Text layouts of temporal values, as the cache stores them.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05.999999"
	TimestampLayout = "2006-01-02 15:04:05.999999"
)

// convertToNumericType converts a scanned or decoded value to T
func convertToNumericType[T constraints.Integer | constraints.Float](val any) (T, error) {
	switch v := val.(type) {
	case int:
		return T(v), nil
	case uint:
		return T(v), nil
	case int8:
		return T(v), nil
	case uint8:
		return T(v), nil
	case int16:
		return T(v), nil
	case uint16:
		return T(v), nil
	case int32:
		return T(v), nil
	case uint32:
		return T(v), nil
	case int64:
		return T(v), nil
	case uint64:
		return T(v), nil
	case float32:
		return T(v), nil
	case float64:
		return T(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return convertToNumericType[T](string(v))
	default:
		strVal := fmt.Sprintf("%v", val)
		var zero T
		switch any(zero).(type) {
		case int8, int16, int32, int64:
			parsed, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
			}
			return T(parsed), nil
		case uint8, uint16, uint32, uint64:
			parsed, err := strconv.ParseUint(strVal, 10, 64)
			if err != nil {
				return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
			}
			return T(parsed), nil
		case float32, float64:
			parsed, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
			}
			return T(parsed), nil
		default:
			return zero, fmt.Errorf("unsupported numeric type conversion to %T", zero)
		}
	}
}

func convertToBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int8:
		return v != 0, nil
	case int16:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case uint8:
		return v != 0, nil
	case uint16:
		return v != 0, nil
	case uint32:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case []byte:
		return convertToBool(string(v))
	default:
		strVal := fmt.Sprintf("%v", val)
		boolVal, err := strconv.ParseBool(strVal)
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool: %w", strVal, err)
		}
		return boolVal, nil
	}
}

func convertToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(TimestampLayout)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertToBinary(val any) []byte {
	switch v := val.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return fmt.Appendf(nil, "%v", val)
	}
}

func convertToDate32(val any) (arrow.Date32, error) {
	switch v := val.(type) {
	case time.Time:
		return arrow.Date32FromTime(v), nil
	case []byte:
		return convertToDate32(string(v))
	case string:
		t, err := parseTime(v)
		if err != nil {
			return 0, err
		}
		return arrow.Date32FromTime(t), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to Date32, expected time.Time", val)
	}
}

func convertToTime64(val any, unit arrow.TimeUnit) (arrow.Time64, error) {
	var t time.Time
	switch v := val.(type) {
	case time.Time:
		t = v
	case []byte:
		return convertToTime64(string(v), unit)
	case string:
		parsed, err := parseTimeOfDay(v)
		if err != nil {
			return 0, err
		}
		t = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to Time64, expected time.Time", val)
	}
	nanos := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return arrow.Time64(int64(nanos) / int64(unit.Multiplier())), nil
}

func parseTimeOfDay(s string) (time.Time, error) {
	layouts := []string{
		"15:04:05",
		"15:04:05.999999999",
		"15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time string: %q", s)
}

func convertToTimestamp(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp, expected time.Time", val)
	}
}

func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		DateLayout,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse timestamp string: %q", s)
}

func convertToDecimalString(val any) string {
	switch v := val.(type) {
	case []byte:
		return string(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// unwrap unwraps nullable database types using the driver.Valuer interface.
func unwrap(val any) (any, error) {
	if v, ok := val.(driver.Valuer); ok {
		return v.Value()
	}
	return val, nil
}

// Append converts val to the builder's type and appends it. A nil val
// appends a null.
func Append(b array.Builder, val any) error {
	val, err := unwrap(val)
	if err != nil {
		return fmt.Errorf("failed to unwrap value: %w", err)
	}
	if val == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		v, err := convertToBool(val)
		if err != nil {
			return err
		}
		b.Append(v)
	case *array.Int8Builder:
		return appendNumeric[int8](b, val)
	case *array.Int16Builder:
		return appendNumeric[int16](b, val)
	case *array.Int32Builder:
		return appendNumeric[int32](b, val)
	case *array.Int64Builder:
		return appendNumeric[int64](b, val)
	case *array.Uint8Builder:
		return appendNumeric[uint8](b, val)
	case *array.Uint16Builder:
		return appendNumeric[uint16](b, val)
	case *array.Uint32Builder:
		return appendNumeric[uint32](b, val)
	case *array.Uint64Builder:
		return appendNumeric[uint64](b, val)
	case *array.Float32Builder:
		return appendNumeric[float32](b, val)
	case *array.Float64Builder:
		return appendNumeric[float64](b, val)
	case *array.StringBuilder:
		b.Append(convertToString(val))
	case *array.LargeStringBuilder:
		b.Append(convertToString(val))
	case *array.BinaryBuilder:
		b.Append(convertToBinary(val))
	case *array.Date32Builder:
		v, err := convertToDate32(val)
		if err != nil {
			return err
		}
		b.Append(v)
	case *array.Time64Builder:
		v, err := convertToTime64(val, b.Type().(*arrow.Time64Type).Unit)
		if err != nil {
			return err
		}
		b.Append(v)
	case *array.TimestampBuilder:
		v, err := convertToTimestamp(val)
		if err != nil {
			return err
		}
		b.AppendTime(v)
	case *array.Decimal128Builder:
		return b.AppendValueFromString(convertToDecimalString(val))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

type numericBuilder[T constraints.Integer | constraints.Float] interface {
	Append(T)
}

func appendNumeric[T constraints.Integer | constraints.Float](b numericBuilder[T], val any) error {
	v, err := convertToNumericType[T](val)
	if err != nil {
		return err
	}
	b.Append(v)
	return nil
}

// Value extracts a Go value from an Arrow array at the given index. Temporal
// values come back as time.Time and decimals as text with all scale digits.
func Value(arr arrow.Array, index int) (any, error) {
	if arr.IsNull(index) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Int8:
		return a.Value(index), nil
	case *array.Int16:
		return a.Value(index), nil
	case *array.Int32:
		return a.Value(index), nil
	case *array.Int64:
		return a.Value(index), nil
	case *array.Uint8:
		return a.Value(index), nil
	case *array.Uint16:
		return a.Value(index), nil
	case *array.Uint32:
		return a.Value(index), nil
	case *array.Uint64:
		return a.Value(index), nil
	case *array.Float32:
		return a.Value(index), nil
	case *array.Float64:
		return a.Value(index), nil
	case *array.Boolean:
		return a.Value(index), nil
	case *array.String:
		return a.Value(index), nil
	case *array.LargeString:
		return a.Value(index), nil
	case *array.StringView:
		return a.Value(index), nil
	case *array.Binary:
		return a.Value(index), nil
	case *array.BinaryView:
		return a.Value(index), nil
	case *array.FixedSizeBinary:
		return a.Value(index), nil
	case *array.LargeBinary:
		return a.Value(index), nil
	case *array.Date32:
		return a.Value(index).ToTime(), nil
	case *array.Date64:
		return a.Value(index).ToTime(), nil
	case *array.Time32:
		timeType := a.DataType().(*arrow.Time32Type)
		return a.Value(index).ToTime(timeType.Unit), nil
	case *array.Time64:
		timeType := a.DataType().(*arrow.Time64Type)
		return a.Value(index).ToTime(timeType.Unit), nil
	case *array.Timestamp:
		timestampType := a.DataType().(*arrow.TimestampType)
		tz, err := timestampType.GetZone()
		if err != nil {
			return nil, err
		}
		return a.Value(index).ToTime(timestampType.Unit).In(tz), nil
	case *array.Decimal128:
		decimalType := a.DataType().(*arrow.Decimal128Type)
		return a.Value(index).ToString(decimalType.Scale), nil
	default:
		return a.ValueStr(index), nil
	}
}
