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
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultBatchSize is the number of rows per record batch when none is given.
const DefaultBatchSize = 65536

// RowSource is a row-wise source of data (a sqlite result set, a binary
// datafile). BaseRecordReader pivots it into an array.RecordReader.
type RowSource interface {
	io.Closer
	// Schema is called once, before anything else.
	Schema(ctx context.Context) (*arrow.Schema, error)
	BeginAppending(builder *array.RecordBuilder) error
	// Return io.EOF if no more rows can be appended
	AppendRow(builder *array.RecordBuilder) error
}

// BaseRecordReader is an array.RecordReader based on a row-wise source.
type BaseRecordReader struct {
	refCount  int64
	alloc     memory.Allocator
	batchSize int64
	source    RowSource
	schema    *arrow.Schema
	builder   *array.RecordBuilder

	// The next record to be yielded
	record arrow.RecordBatch
	// All errors encountered
	err  error
	done bool
}

// Init initializes the state for the record reader. On failure the source is
// closed.
func (rr *BaseRecordReader) Init(ctx context.Context, alloc memory.Allocator, batchSize int64, source RowSource) error {
	rr.refCount = 1

	if ctx == nil {
		return errors.New("driverbase: BaseRecordReader: must provide ctx")
	} else if alloc == nil {
		return errors.New("driverbase: BaseRecordReader: must provide alloc")
	} else if source == nil {
		return errors.New("driverbase: BaseRecordReader: must provide source")
	} else if batchSize == 0 {
		batchSize = DefaultBatchSize
	} else if batchSize < 0 {
		return errors.New("driverbase: BaseRecordReader: batchSize must be non-negative")
	}

	rr.alloc = alloc
	rr.batchSize = batchSize
	rr.source = source

	schema, err := rr.source.Schema(ctx)
	if err != nil {
		rr.err = err
		rr.Close()
		return err
	}

	rr.schema = schema
	rr.builder = array.NewRecordBuilder(rr.alloc, schema)
	if err := rr.source.BeginAppending(rr.builder); err != nil {
		rr.err = err
		rr.Close()
		return err
	}
	return nil
}

func (rr *BaseRecordReader) Close() {
	if rr.record != nil {
		rr.record.Release()
		rr.record = nil
	}
	if rr.builder != nil {
		rr.builder.Release()
		rr.builder = nil
	}
	if rr.source != nil {
		if err := rr.source.Close(); err != nil {
			rr.err = errors.Join(rr.err, err)
		}
		rr.source = nil
	}
}

func (rr *BaseRecordReader) Next() bool {
	if rr.source == nil || rr.err != nil {
		return false
	}
	if rr.record != nil {
		rr.record.Release()
		rr.record = nil
	}
	if rr.done {
		rr.Close()
		return false
	}

	rows := int64(0)
	for rows < rr.batchSize {
		err := rr.source.AppendRow(rr.builder)
		if err == io.EOF {
			// Resources are still needed for the record we are about to
			// yield, so defer closing to the next call.
			rr.done = true
			break
		} else if err != nil {
			rr.err = err
			return false
		}
		rows++
	}
	if rows == 0 {
		rr.Close()
		return false
	}
	rr.record = rr.builder.NewRecordBatch()
	return true
}

func (rr *BaseRecordReader) Release() {
	if atomic.AddInt64(&rr.refCount, -1) == 0 {
		rr.Close()
	}
}

func (rr *BaseRecordReader) Retain() {
	atomic.AddInt64(&rr.refCount, 1)
}

func (rr *BaseRecordReader) Schema() *arrow.Schema {
	return rr.schema
}

func (rr *BaseRecordReader) RecordBatch() arrow.RecordBatch {
	return rr.record
}

func (rr *BaseRecordReader) Record() arrow.RecordBatch {
	return rr.record
}

func (rr *BaseRecordReader) Err() error {
	return rr.err
}
