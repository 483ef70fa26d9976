// Package staging buffers records per stream, writes them to batch files,
// and uploads those files into a stream's stage.
package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sandboxws/stagesync/pkg/arrow/helpers"
	"github.com/sandboxws/stagesync/pkg/databend"
	"github.com/sandboxws/stagesync/pkg/metrics"
	"github.com/sandboxws/stagesync/pkg/protocol"
	"github.com/sandboxws/stagesync/pkg/stream"
)

// DefaultMaxSize is the buffered byte estimate above which a buffer flushes.
const DefaultMaxSize int64 = 128 * 1024 * 1024

// Schema is the row layout held in memory and written to batch files.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: databend.ColumnID, Type: arrow.BinaryTypes.String},
	{Name: databend.ColumnData, Type: arrow.BinaryTypes.String},
	{Name: databend.ColumnEmittedAt, Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}},
}, nil)

// Buffer accumulates one stream's records between checkpoints. It is not
// safe for concurrent use.
type Buffer struct {
	wc       stream.WriteContext
	uploader *Uploader
	builder  *array.RecordBuilder
	maxSize  int64
	size     int64
	stageID  int
	uploaded []string
	dir      string
	label    string
	logger   *slog.Logger
}

// NewBuffer creates a buffer for wc. Batch files are written to a fresh
// directory under tmpDir, or the system temp directory when tmpDir is empty.
func NewBuffer(wc stream.WriteContext, uploader *Uploader, alloc memory.Allocator, tmpDir string) (*Buffer, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	dir, err := os.MkdirTemp(tmpDir, stream.Sanitize(wc.Key().String())+"_")
	if err != nil {
		return nil, fmt.Errorf("staging: %s: create temp dir: %w", wc.Key(), err)
	}
	return &Buffer{
		wc:       wc,
		uploader: uploader,
		builder:  array.NewRecordBuilder(alloc, Schema),
		maxSize:  DefaultMaxSize,
		dir:      dir,
		label:    wc.Key().String(),
		logger:   slog.Default().With("component", "buffer", "stream", wc.Key().String()),
	}, nil
}

// SetMaxSize sets the flush threshold in bytes.
func (b *Buffer) SetMaxSize(n int64) {
	if n > 0 {
		b.maxSize = n
	}
}

// Add appends rec and flushes once the size estimate exceeds the threshold.
func (b *Buffer) Add(ctx context.Context, rec *protocol.Record) error {
	data := []byte(rec.Data)
	if len(data) == 0 {
		data = []byte("null")
	}
	var payload bytes.Buffer
	if err := json.Compact(&payload, data); err != nil {
		return fmt.Errorf("staging: %s: encode record data: %w", b.label, err)
	}

	id := uuid.NewString()
	b.builder.Field(0).(*array.StringBuilder).Append(id)
	b.builder.Field(1).(*array.StringBuilder).Append(payload.String())
	b.builder.Field(2).(*array.TimestampBuilder).Append(arrow.Timestamp(rec.EmittedAt))
	b.size += int64(len(id)+payload.Len()+len(TimestampLayout)) + rowOverhead
	metrics.RecordsBuffered.WithLabelValues(b.label).Inc()

	if b.size > b.maxSize {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered rows to a batch file and uploads it. The
// in-memory rows are discarded whether or not the upload succeeds, and the
// local file is always removed.
func (b *Buffer) Flush(ctx context.Context) error {
	if b.Len() == 0 {
		return nil
	}
	batch := b.builder.NewRecord()
	rows := batch.NumRows()
	b.size = 0

	file := filepath.Join(b.dir, fmt.Sprintf("%s_%s_%d.csv", b.wc.Name(), b.wc.Namespace(), b.stageID))
	defer func() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to remove batch file", "file", file, "error", err)
		}
	}()

	err := writeBatchFile(file, batch)
	batch.Release()
	if err != nil {
		return fmt.Errorf("staging: %s: write batch file: %w", b.label, err)
	}
	metrics.Flushes.WithLabelValues(b.label).Inc()
	b.logger.Info("flushed buffer", "rows", rows, "file", file)

	return b.upload(ctx, file)
}

func (b *Buffer) upload(ctx context.Context, file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("staging: %s: stat %s: %w", b.label, file, err)
	}
	if info.Size() == 0 {
		b.logger.Info("skipping empty batch file", "file", file)
		return nil
	}
	if err := b.uploader.Upload(ctx, b.wc.Stage(), b.wc.StagePath(), file); err != nil {
		return fmt.Errorf("staging: %s: upload %s to stage %s/%s: %w",
			b.label, filepath.Base(file), b.wc.Stage(), b.wc.StagePath(), err)
	}
	b.uploaded = append(b.uploaded, filepath.Base(file))
	b.stageID++
	return nil
}

// Clear drops buffered rows and forgets uploaded files after a checkpoint.
func (b *Buffer) Clear() {
	if b.Len() > 0 {
		b.builder.NewRecord().Release()
	}
	b.size = 0
	for _, name := range b.uploaded {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to remove batch file", "file", name, "error", err)
		}
	}
	b.uploaded = nil
	b.stageID = 0
}

// UploadedFilesClause returns the COPY files clause for uploaded files.
func (b *Buffer) UploadedFilesClause() string {
	return databend.FilesClause(b.uploaded)
}

// UploadedFiles returns the base names of files uploaded since the last Clear.
func (b *Buffer) UploadedFiles() []string {
	return append([]string(nil), b.uploaded...)
}

// Len returns the number of buffered rows.
func (b *Buffer) Len() int {
	return b.builder.Field(0).Len()
}

// Size returns the buffered byte estimate.
func (b *Buffer) Size() int64 {
	return b.size
}

// StageID returns the sequence number of the next batch file.
func (b *Buffer) StageID() int {
	return b.stageID
}

// WriteContext returns the stream identity the buffer was created for.
func (b *Buffer) WriteContext() stream.WriteContext {
	return b.wc
}

// Dir returns the local directory batch files are written to.
func (b *Buffer) Dir() string {
	return b.dir
}

// Close releases buffered memory and removes the local directory.
func (b *Buffer) Close() error {
	b.builder.Release()
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("staging: %s: remove temp dir: %w", b.label, err)
	}
	return nil
}

func writeBatchFile(path string, batch arrow.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	ids, err := helpers.StringColumn(batch, databend.ColumnID)
	if err != nil {
		return err
	}
	data, err := helpers.StringColumn(batch, databend.ColumnData)
	if err != nil {
		return err
	}
	emitted, unit, err := helpers.TimestampColumn(batch, databend.ColumnEmittedAt)
	if err != nil {
		return err
	}

	w := newCSVWriter(f)
	for i := 0; i < int(batch.NumRows()); i++ {
		ts := emitted.Value(i).ToTime(unit).UTC().Format(TimestampLayout)
		if err := w.Write(ids.Value(i), data.Value(i), ts); err != nil {
			return err
		}
	}
	return w.Flush()
}
