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

package driverbase

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-adbc/go/adbc"
)

// Scope owns a resource from construction until Close. It is not safe for
// concurrent use.
type Scope[T any] struct {
	handle *T
	closer io.Closer
}

func NewScope[T any](handle *T, closer io.Closer) *Scope[T] {
	return &Scope[T]{
		handle: handle,
		closer: closer,
	}
}

// Open reports whether the resource has not been closed yet.
func (sc *Scope[T]) Open() bool {
	return sc.handle != nil
}

func (sc *Scope[T]) Close() error {
	if sc.handle == nil {
		return nil
	}

	closer := sc.closer
	sc.handle = nil
	sc.closer = nil
	if closer == nil {
		return nil
	}
	if err := closer.Close(); err != nil {
		return errors.Join(adbc.Error{
			Code: adbc.StatusInternal,
			Msg:  fmt.Sprintf("[driverbase] Scope[%T].Close: failed to close resource: %s", *new(T), err),
		}, err)
	}
	return nil
}

func (sc *Scope[T]) Run(closure func(*T) error) error {
	if sc.handle == nil {
		return adbc.Error{
			Msg:  fmt.Sprintf("[driverbase] Scope[%T].Run: already closed", *new(T)),
			Code: adbc.StatusInvalidState,
		}
	}

	return closure(sc.handle)
}

func WithScope[T, R any](sc *Scope[T], closure func(*T) (R, error)) (R, error) {
	if sc.handle == nil {
		return *new(R), adbc.Error{
			Msg:  fmt.Sprintf("[driverbase] Scope[%T].WithScope: already closed", *new(T)),
			Code: adbc.StatusInvalidState,
		}
	}

	return closure(sc.handle)
}

// Using opens a resource, runs closure on it and closes it on every exit
// path. A close failure is joined onto the closure's error.
func Using[T, R any](open func() (*T, io.Closer, error), closure func(*T) (R, error)) (result R, err error) {
	handle, closer, err := open()
	if err != nil {
		return result, err
	}
	sc := NewScope(handle, closer)
	defer func() {
		err = errors.Join(err, sc.Close())
	}()

	return WithScope(sc, closure)
}
