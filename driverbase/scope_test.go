// Copyright (c) 2025 Columnar Technologies, Inc.
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

package driverbase_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/adbc-drivers/datastream-go/driverbase"
	"github.com/stretchr/testify/suite"
)

func TestScope(t *testing.T) {
	suite.Run(t, &ScopeTest{})
}

type ScopeTest struct {
	suite.Suite
}

type value struct {
	closeErr error
	closed   int
}

func (v *value) Close() error {
	v.closed++
	return v.closeErr
}

func (s *ScopeTest) TestNewClose() {
	v := &value{}
	sc := driverbase.NewScope(v, v)
	s.True(sc.Open())
	s.NoError(sc.Close())
	s.False(sc.Open())
	// Close is idempotent
	s.NoError(sc.Close())
	s.Equal(1, v.closed)

	v = &value{closeErr: fmt.Errorf("close error")}
	sc = driverbase.NewScope(v, v)
	s.ErrorContains(sc.Close(), "close error")
}

func (s *ScopeTest) TestAfterClose() {
	v := &value{}
	sc := driverbase.NewScope(v, v)
	s.NoError(sc.Close())

	err := sc.Run(func(v *value) error {
		s.Fail("should not run")
		return nil
	})
	s.ErrorContains(err, "Run: already closed")

	_, err = driverbase.WithScope(sc, func(v *value) (any, error) {
		s.Fail("should not run")
		return nil, nil
	})
	s.ErrorContains(err, "WithScope: already closed")
}

func (s *ScopeTest) TestUsingReleasesOnError() {
	v := &value{}
	open := func() (*value, io.Closer, error) { return v, v, nil }

	n, err := driverbase.Using(open, func(v *value) (int, error) {
		return 3, nil
	})
	s.NoError(err)
	s.Equal(3, n)
	s.Equal(1, v.closed)

	boom := errors.New("boom")
	_, err = driverbase.Using(open, func(v *value) (int, error) {
		return 0, boom
	})
	s.ErrorIs(err, boom)
	s.Equal(2, v.closed)

	v.closeErr = errors.New("close error")
	_, err = driverbase.Using(open, func(v *value) (int, error) {
		return 0, boom
	})
	s.ErrorIs(err, boom)
	s.ErrorContains(err, "close error")
}

func (s *ScopeTest) TestUsingOpenFailure() {
	_, err := driverbase.Using(func() (*value, io.Closer, error) {
		return nil, nil, errors.New("cannot open")
	}, func(v *value) (int, error) {
		s.Fail("should not run")
		return 0, nil
	})
	s.ErrorContains(err, "cannot open")
}
