// Copyright (c) 2025 ADBC Drivers Contributors.
//
// This file has been modified from its original version, which is
// under the Apache License:
//
// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package driverbase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-adbc/go/adbc"
)

// Error kinds. Every error produced by an ErrorHelper matches exactly one of
// these with errors.Is.
var (
	// ErrType is a wrong argument shape or type.
	ErrType = errors.New("type error")
	// ErrValue is a wrong argument value or range.
	ErrValue = errors.New("value error")
	// ErrLookup is a name missing from a mapping (types, contexts, connections).
	ErrLookup = errors.New("lookup error")
	// ErrReference is a missing referent (files, workflow constants).
	ErrReference = errors.New("reference error")
	// ErrFormat is a malformed type/length string.
	ErrFormat = errors.New("format error")
	// ErrValidation is a semantically inconsistent type/length.
	ErrValidation = errors.New("validation error")
	// ErrConnection is a backing store that is unreachable or not a valid file
	// of its declared format.
	ErrConnection = errors.New("connection error")
)

var kindStatus = map[error]adbc.Status{
	ErrType:       adbc.StatusInvalidArgument,
	ErrValue:      adbc.StatusInvalidArgument,
	ErrLookup:     adbc.StatusNotFound,
	ErrReference:  adbc.StatusNotFound,
	ErrFormat:     adbc.StatusInvalidData,
	ErrValidation: adbc.StatusInvalidData,
	ErrConnection: adbc.StatusIO,
}

// Error is an adbc.Error tagged with one of the error kinds above.
type Error struct {
	Kind  error
	Inner adbc.Error
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	return e.Inner.Msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind, e.Inner}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// KindOf returns the kind sentinel of err, or nil if err was not produced by
// an ErrorHelper.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// ErrorHelper helps format and report errors.
type ErrorHelper struct {
	DriverName string
	// Logger, if set, receives one record per error at the point the error
	// is created.
	Logger *slog.Logger
}

func (helper *ErrorHelper) newError(kind error, cause error, message string, format ...any) error {
	msg := fmt.Sprintf(message, format...)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	code := kindStatus[kind]
	err := &Error{
		Kind: kind,
		Inner: adbc.Error{
			Code: code,
			Msg:  fmt.Sprintf("[%s] %s", helper.DriverName, msg),
		},
		Cause: cause,
	}
	if helper.Logger != nil {
		helper.Logger.LogAttrs(context.Background(), slog.LevelError, msg,
			slog.String("kind", kind.Error()),
			slog.String("status", code.String()),
		)
	}
	return err
}

func (helper *ErrorHelper) TypeError(message string, format ...any) error {
	return helper.newError(ErrType, nil, message, format...)
}

func (helper *ErrorHelper) ValueError(message string, format ...any) error {
	return helper.newError(ErrValue, nil, message, format...)
}

func (helper *ErrorHelper) LookupError(message string, format ...any) error {
	return helper.newError(ErrLookup, nil, message, format...)
}

func (helper *ErrorHelper) ReferenceError(message string, format ...any) error {
	return helper.newError(ErrReference, nil, message, format...)
}

func (helper *ErrorHelper) FormatError(message string, format ...any) error {
	return helper.newError(ErrFormat, nil, message, format...)
}

func (helper *ErrorHelper) ValidationError(message string, format ...any) error {
	return helper.newError(ErrValidation, nil, message, format...)
}

func (helper *ErrorHelper) ConnectionError(message string, format ...any) error {
	return helper.newError(ErrConnection, nil, message, format...)
}

// wrapError tags an underlying error with a kind. Errors that already carry
// a kind are returned as-is so that they are only reported once.
func (helper *ErrorHelper) wrapError(err error, kind error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}

	return helper.newError(kind, err, format, args...)
}

func (helper *ErrorHelper) WrapType(err error, format string, args ...any) error {
	return helper.wrapError(err, ErrType, format, args...)
}

func (helper *ErrorHelper) WrapValue(err error, format string, args ...any) error {
	return helper.wrapError(err, ErrValue, format, args...)
}

func (helper *ErrorHelper) WrapReference(err error, format string, args ...any) error {
	return helper.wrapError(err, ErrReference, format, args...)
}

func (helper *ErrorHelper) WrapValidation(err error, format string, args ...any) error {
	return helper.wrapError(err, ErrValidation, format, args...)
}

func (helper *ErrorHelper) WrapConnection(err error, format string, args ...any) error {
	return helper.wrapError(err, ErrConnection, format, args...)
}
