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
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/adbc-drivers/datastream-go/driverbase"
)

// DriverName prefixes every error message.
const DriverName = "datastream"

// TypeLength is a type name together with its length.
type TypeLength struct {
	Type   string
	Length Length
}

func (tl TypeLength) String() string {
	return strings.TrimSpace(tl.Type + " " + tl.Length.Literal())
}

var typeToken = regexp.MustCompile(`\b[A-Za-z]\w+(?:\s[A-Za-z]\w+)?\b`)

// Tools parses, converts and formats types against a Registry.
type Tools struct {
	reg    *Registry
	logger *slog.Logger
	errs   *driverbase.ErrorHelper
}

// NewTools returns Tools over reg. A nil reg means the built-in registry; a
// nil logger discards output.
func NewTools(reg *Registry, logger *slog.Logger) *Tools {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tools{
		reg:    reg,
		logger: logger,
		errs:   &driverbase.ErrorHelper{DriverName: DriverName, Logger: logger},
	}
}

func (t *Tools) Registry() *Registry {
	return t.reg
}

func (t *Tools) checkContext(ctx Context) error {
	if !t.reg.Known(ctx) {
		return t.errs.LookupError("unknown context %q, expected one of %v", ctx, t.reg.Contexts())
	}
	return nil
}

// Types returns the canonical type names of ctx.
func (t *Tools) Types(ctx Context) ([]string, error) {
	if err := t.checkContext(ctx); err != nil {
		return nil, err
	}
	return t.reg.Types(ctx), nil
}

// Lookup returns the registry entry of an exactly spelled type.
func (t *Tools) Lookup(ctx Context, name string) (TypeDef, error) {
	if err := t.checkContext(ctx); err != nil {
		return TypeDef{}, err
	}
	def, ok := t.reg.Lookup(ctx, name)
	if !ok {
		return TypeDef{}, t.errs.LookupError("%q is not a %s type, expected one of %v", name, ctx, t.reg.Types(ctx))
	}
	return def, nil
}

// canonical resolves a loosely spelled type name to its registry spelling:
// the first type (in declaration order) whose lower-cased, space-free name
// starts with the lower-cased, space-free token.
func (t *Tools) canonical(ctx Context, token string) (TypeDef, error) {
	if def, ok := t.reg.Lookup(ctx, token); ok {
		return def, nil
	}
	want := normalizeName(token)
	for _, name := range t.reg.Types(ctx) {
		if strings.HasPrefix(normalizeName(name), want) {
			def, _ := t.reg.Lookup(ctx, name)
			return def, nil
		}
	}
	return TypeDef{}, t.errs.LookupError("%q is not a %s type, expected one of %v", token, ctx, t.reg.Types(ctx))
}

// Parse splits a combined type string such as "CHAR(7)", "decimal(19,6)" or
// "Fixed Decimal 19.6" into its canonical type and length.
func (t *Tools) Parse(combined string, ctx Context) (TypeLength, error) {
	if err := t.checkContext(ctx); err != nil {
		return TypeLength{}, err
	}

	tokens := typeToken.FindAllString(combined, -1)
	if len(tokens) != 1 {
		return TypeLength{}, t.errs.FormatError("expected exactly one type name in %q, found %d", combined, len(tokens))
	}

	length, err := ParseLength(combined)
	if err != nil {
		return TypeLength{}, t.errs.FormatError("invalid length in %q: %v", combined, err)
	}
	if len(length) > 2 {
		return TypeLength{}, t.errs.FormatError("too many length values in %q: %v", combined, []int(length))
	}

	def, err := t.canonical(ctx, tokens[0])
	if err != nil {
		return TypeLength{}, err
	}

	switch {
	case def.Arity == 0:
		// fixed types ignore whatever length was given
		length = Length{}
	case len(length) != def.Arity:
		return TypeLength{}, t.errs.ValidationError("%s type %q takes %d length value(s), got %d in %q",
			ctx, def.Name, def.Arity, len(length), combined)
	}

	tl := TypeLength{Type: def.Name, Length: length}
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "parsed type",
		slog.String("input", combined),
		slog.String("context", string(ctx)),
		slog.String("type", tl.Type),
		slog.Any("length", []int(tl.Length)))
	return tl, nil
}

// Convert maps a type and length from one context to the canonical
// equivalent in another. The length is carried over unless the target takes
// no length or none was given, in which case the target's default is used.
func (t *Tools) Convert(tl TypeLength, from, to Context) (TypeLength, error) {
	if err := t.checkContext(from); err != nil {
		return TypeLength{}, err
	}
	if err := t.checkContext(to); err != nil {
		return TypeLength{}, err
	}
	if from == to {
		return tl, nil
	}

	def, ok := t.reg.Lookup(from, tl.Type)
	if !ok {
		return TypeLength{}, t.errs.LookupError("%q is not a %s type, expected one of %v", tl.Type, from, t.reg.Types(from))
	}
	candidates := def.Targets[to]
	if len(candidates) == 0 {
		return TypeLength{}, t.errs.LookupError("%s type %q has no %s equivalent", from, tl.Type, to)
	}
	target, ok := t.reg.Lookup(to, candidates[0])
	if !ok {
		return TypeLength{}, t.errs.LookupError("%s type %q converts to %q, which is not a %s type", from, tl.Type, candidates[0], to)
	}

	out := TypeLength{Type: target.Name}
	if target.Arity == 0 || len(tl.Length) == 0 {
		out.Length = target.Default.Clone()
		t.logger.LogAttrs(context.Background(), slog.LevelDebug, "substituted default length",
			slog.String("type", out.Type),
			slog.String("context", string(to)),
			slog.Any("length", []int(out.Length)))
	} else {
		out.Length = tl.Length.Clone()
	}

	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "converted type",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("input", tl.String()),
		slog.String("output", out.String()))
	return out, nil
}

// ConvertString parses combined in from and converts it to to.
func (t *Tools) ConvertString(combined string, from, to Context) (TypeLength, error) {
	tl, err := t.Parse(combined, from)
	if err != nil {
		return TypeLength{}, err
	}
	return t.Convert(tl, from, to)
}

// FormatLength renders a length in the syntax of ctx: a string for literal
// contexts; nil, an int or a float64 for typed-field contexts.
func (t *Tools) FormatLength(length Length, ctx Context) (any, error) {
	if err := t.checkContext(ctx); err != nil {
		return nil, err
	}
	if !length.valid() {
		return nil, t.errs.ValidationError("length must be 0 to 2 non-negative integers, got %v", []int(length))
	}
	syntax, _ := t.reg.Syntax(ctx)
	if syntax == FieldSyntax {
		return length.Field(), nil
	}
	return length.Literal(), nil
}

// lengthArg converts the loosely typed length of a column override.
func (t *Tools) lengthArg(length any) (Length, bool, error) {
	switch v := length.(type) {
	case nil:
		return nil, false, nil
	case Length:
		return v, true, nil
	case []int:
		return Length(v), true, nil
	case int:
		return Length{v}, true, nil
	case int8:
		return Length{int(v)}, true, nil
	case int16:
		return Length{int(v)}, true, nil
	case int32:
		return Length{int(v)}, true, nil
	case int64:
		return Length{int(v)}, true, nil
	case uint8:
		return Length{int(v)}, true, nil
	case uint16:
		return Length{int(v)}, true, nil
	case uint32:
		return Length{int(v)}, true, nil
	case float32:
		return t.lengthArg(float64(v))
	case float64:
		l, err := ParseLength(floatText(v))
		if err != nil {
			return nil, false, t.errs.WrapValidation(err, "invalid length %v", v)
		}
		return l, true, nil
	case string:
		l, err := ParseLength(v)
		if err != nil {
			return nil, false, t.errs.WrapValidation(err, "invalid length %q", v)
		}
		return l, true, nil
	default:
		return nil, false, t.errs.TypeError("length must be a number, a string or a Length, got %T", length)
	}
}

// Concat joins a type and a length into the combined type string of ctx,
// e.g. "varchar (100)" or "Fixed Decimal 19.6". A nil length means the
// type's default; types that take no length drop it.
func (t *Tools) Concat(typeName string, length any, ctx Context) (string, error) {
	if err := t.checkContext(ctx); err != nil {
		return "", err
	}
	def, err := t.canonical(ctx, typeName)
	if err != nil {
		return "", err
	}

	l, given, err := t.lengthArg(length)
	if err != nil {
		return "", err
	}
	if !given {
		l = def.Default
	}
	if def.Arity == 0 {
		l = Length{}
	} else if len(l) != def.Arity {
		return "", t.errs.ValidationError("%s type %q takes %d length value(s), got %v", ctx, def.Name, def.Arity, []int(l))
	}

	formatted, err := t.FormatLength(l, ctx)
	if err != nil {
		return "", err
	}
	var text string
	if s, ok := formatted.(string); ok {
		text = s
	} else {
		text = FieldText(formatted)
	}
	return strings.TrimSpace(def.Name + " " + text), nil
}

// SupplementDefault fills in the registry default when tl has no length.
func (t *Tools) SupplementDefault(tl TypeLength, ctx Context) (TypeLength, error) {
	def, err := t.Lookup(ctx, tl.Type)
	if err != nil {
		return TypeLength{}, err
	}
	if len(tl.Length) == 0 {
		tl.Length = def.Default.Clone()
	}
	return tl, nil
}

// Errors exposes the error helper so that callers report errors the same way.
func (t *Tools) Errors() *driverbase.ErrorHelper {
	return t.errs
}

func (t *Tools) Logger() *slog.Logger {
	return t.logger
}
