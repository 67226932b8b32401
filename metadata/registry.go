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

// Package metadata translates field types and their length tuples between
// the type systems the host exchanges data through.
package metadata

import (
	"errors"
	"fmt"
	"slices"
)

// Context names a type system.
type Context string

const (
	// SQLite is the tabular cache backend.
	SQLite Context = "sqlite"
	// YXDB is the host's binary columnar format.
	YXDB Context = "yxdb"
	// Arrow is the in-memory dataframe; type names are Arrow type names.
	Arrow Context = "arrow"
	// Scalar is the scripting scalar type of a single value.
	Scalar Context = "scalar"
)

// LengthSyntax is how a context writes a length tuple.
type LengthSyntax int

const (
	// LiteralSyntax appends "(n)" or "(p, s)" to the type name.
	LiteralSyntax LengthSyntax = iota
	// FieldSyntax stores the length in a separate typed field: nothing, an
	// integer, or a "p.s" float.
	FieldSyntax
)

// TypeDef is one registry entry. Values returned by a Registry are shared and
// must not be modified.
type TypeDef struct {
	Name string
	// Targets lists the equivalent types in other contexts. The first one is
	// canonical.
	Targets map[Context][]string
	// Arity is the number of length elements the type takes (0, 1 or 2).
	Arity int
	// Default is substituted when a conversion yields no length. May be nil.
	Default Length
}

// Table is the set of types of one context, in declaration order.
type Table struct {
	Context Context
	Syntax  LengthSyntax
	Types   []TypeDef
}

type contextTable struct {
	syntax LengthSyntax
	names  []string
	defs   map[string]TypeDef
}

// Registry is an immutable index of type tables.
type Registry struct {
	order  []Context
	tables map[Context]*contextTable
}

// NewRegistry indexes the given tables. A later table for the same context
// replaces an earlier one; a later type with the same name replaces the
// earlier definition but keeps its position.
func NewRegistry(tables ...Table) *Registry {
	r := &Registry{tables: make(map[Context]*contextTable, len(tables))}
	for _, t := range tables {
		ct := &contextTable{syntax: t.Syntax, defs: make(map[string]TypeDef, len(t.Types))}
		for _, def := range t.Types {
			if _, ok := ct.defs[def.Name]; !ok {
				ct.names = append(ct.names, def.Name)
			}
			ct.defs[def.Name] = def
		}
		if _, ok := r.tables[t.Context]; !ok {
			r.order = append(r.order, t.Context)
		}
		r.tables[t.Context] = ct
	}
	return r
}

// Contexts returns the known contexts in declaration order.
func (r *Registry) Contexts() []Context {
	return slices.Clone(r.order)
}

// Known reports whether ctx is a registered context.
func (r *Registry) Known(ctx Context) bool {
	_, ok := r.tables[ctx]
	return ok
}

func (r *Registry) Syntax(ctx Context) (LengthSyntax, bool) {
	t, ok := r.tables[ctx]
	if !ok {
		return 0, false
	}
	return t.syntax, true
}

// Types returns the type names of ctx in declaration order, or nil for an
// unknown context.
func (r *Registry) Types(ctx Context) []string {
	t, ok := r.tables[ctx]
	if !ok {
		return nil
	}
	return slices.Clone(t.names)
}

func (r *Registry) Lookup(ctx Context, name string) (TypeDef, bool) {
	t, ok := r.tables[ctx]
	if !ok {
		return TypeDef{}, false
	}
	def, ok := t.defs[name]
	return def, ok
}

// Check verifies that every conversion target exists and declares a way
// back into the context it was reached from. All problems are reported.
func (r *Registry) Check() error {
	var errs []error
	for _, from := range r.order {
		t := r.tables[from]
		for _, name := range t.names {
			def := t.defs[name]
			if def.Arity < 0 || def.Arity > 2 {
				errs = append(errs, fmt.Errorf("%s %q: arity %d out of range", from, name, def.Arity))
			}
			if len(def.Default) > 2 || (def.Arity > 0 && def.Default != nil && len(def.Default) != def.Arity) {
				errs = append(errs, fmt.Errorf("%s %q: default length %v does not fit arity %d", from, name, def.Default, def.Arity))
			}
			for _, to := range r.order {
				for _, target := range def.Targets[to] {
					back, ok := r.Lookup(to, target)
					if !ok {
						errs = append(errs, fmt.Errorf("%s %q: target %s %q does not exist", from, name, to, target))
					} else if len(back.Targets[from]) == 0 {
						errs = append(errs, fmt.Errorf("%s %q: target %s %q has no conversion back to %s", from, name, to, target, from))
					}
				}
			}
			for to := range def.Targets {
				if !r.Known(to) {
					errs = append(errs, fmt.Errorf("%s %q: unknown target context %q", from, name, to))
				}
			}
		}
	}
	return errors.Join(errs...)
}
