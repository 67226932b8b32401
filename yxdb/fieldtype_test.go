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

package yxdb_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/adbc-drivers/datastream-go/metadata"
	"github.com/adbc-drivers/datastream-go/yxdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLookupFieldType(t *testing.T) {
	for _, tc := range []struct {
		name     string
		expected yxdb.FieldType
	}{
		{"Fixed Decimal", yxdb.FixedDecimal},
		{"fixeddecimal", yxdb.FixedDecimal},
		{"FIXED DECIMAL", yxdb.FixedDecimal},
		{"Boolean", yxdb.Bool},
		{"bool", yxdb.Bool},
		{"V_WString", yxdb.VWString},
		{"v_wstring", yxdb.VWString},
		{"Date Time", yxdb.DateTime},
		{"SpatialObj", yxdb.SpatialObj},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ft, err := yxdb.LookupFieldType(nil, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ft)
		})
	}

	for _, name := range []string{"", "VString", "decimal", "int"} {
		_, err := yxdb.LookupFieldType(nil, name)
		assert.ErrorIs(t, err, driverbase.ErrLookup, name)
	}
}

func TestFieldTypeNamesMatchRegistry(t *testing.T) {
	registry := metadata.DefaultRegistry()
	types := registry.Types(metadata.YXDB)
	require.NotEmpty(t, types)
	for _, name := range types {
		ft, err := yxdb.LookupFieldType(nil, name)
		require.NoError(t, err, name)
		assert.Equal(t, name, ft.String())
	}
	assert.Equal(t, "FieldType(99)", yxdb.FieldType(99).String())
}

func TestFieldOf(t *testing.T) {
	f, err := yxdb.FieldOf(nil, "price", metadata.TypeLength{Type: "Fixed Decimal", Length: metadata.Length{19, 6}})
	require.NoError(t, err)
	assert.Equal(t, yxdb.Field{Name: "price", Type: yxdb.FixedDecimal, Size: 19, Scale: 6}, f)
	assert.Equal(t, metadata.TypeLength{Type: "Fixed Decimal", Length: metadata.Length{19, 6}}, f.TypeLength())

	f, err = yxdb.FieldOf(nil, "name", metadata.TypeLength{Type: "V_WString", Length: metadata.Length{100}})
	require.NoError(t, err)
	assert.Equal(t, 100, f.Size)
	assert.Equal(t, "V_WString (100)", f.TypeLength().String())

	f, err = yxdb.FieldOf(nil, "n", metadata.TypeLength{Type: "Int64", Length: metadata.Length{8}})
	require.NoError(t, err)
	assert.Empty(t, f.TypeLength().Length)

	_, err = yxdb.FieldOf(nil, "x", metadata.TypeLength{Type: "Nope"})
	assert.ErrorIs(t, err, driverbase.ErrLookup)
	_, err = yxdb.FieldOf(nil, "x", metadata.TypeLength{Type: "Int64", Length: metadata.Length{1, 2, 3}})
	assert.ErrorIs(t, err, driverbase.ErrValidation)
}

func TestCheckFields(t *testing.T) {
	assert.NoError(t, yxdb.CheckFields(nil, []yxdb.Field{
		{Name: "a", Type: yxdb.Int64},
		{Name: "b", Type: yxdb.FixedDecimal, Size: 10, Scale: 2},
	}))

	assert.ErrorIs(t, yxdb.CheckFields(nil, nil), driverbase.ErrValue)
	assert.ErrorIs(t, yxdb.CheckFields(nil, []yxdb.Field{{Type: yxdb.Int64}}), driverbase.ErrValue)
	assert.ErrorIs(t, yxdb.CheckFields(nil, []yxdb.Field{{Name: "a", Type: yxdb.Int64}, {Name: "a", Type: yxdb.Bool}}), driverbase.ErrValue)
	assert.ErrorIs(t, yxdb.CheckFields(nil, []yxdb.Field{{Name: "a", Type: 0}}), driverbase.ErrLookup)
	assert.ErrorIs(t, yxdb.CheckFields(nil, []yxdb.Field{{Name: "a", Type: yxdb.FixedDecimal, Size: 2, Scale: 3}}), driverbase.ErrValidation)
}

func TestErrorsGoToCallerLogger(t *testing.T) {
	var logs bytes.Buffer
	errs := &driverbase.ErrorHelper{DriverName: "yxdb", Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	_, err := yxdb.FieldOf(errs, "x", metadata.TypeLength{Type: "Nope"})
	assert.ErrorIs(t, err, driverbase.ErrLookup)
	err = yxdb.CheckFields(errs, []yxdb.Field{{Name: "a", Type: yxdb.Int64}, {Name: "a", Type: yxdb.Bool}})
	assert.ErrorIs(t, err, driverbase.ErrValue)

	assert.Equal(t, 2, strings.Count(logs.String(), "level=ERROR"))
	assert.Contains(t, logs.String(), `unknown yxdb field type \"Nope\"`)
	assert.Contains(t, logs.String(), `duplicate field name \"a\"`)
}
