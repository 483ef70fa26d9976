package stream

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

const (
	tmpTablePrefix = "_tmp_"
	dstTablePrefix = "_raw_"
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 4
)

// WriteContext holds the raw identity of one stream for the lifetime of a
// sync. Every destination name is derived from these fields on demand.
type WriteContext struct {
	StreamName      string
	StreamNamespace string
	CreatedAt       time.Time
	Suffix          string
	ConnectionID    uuid.UUID
}

// NewWriteContext creates a WriteContext with a fresh random suffix,
// connection id, and the current UTC time.
func NewWriteContext(name, namespace string) WriteContext {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return WriteContext{
		StreamName:      name,
		StreamNamespace: namespace,
		CreatedAt:       time.Now().UTC(),
		Suffix:          randomSuffix(suffixLength),
		ConnectionID:    uuid.New(),
	}
}

// Key returns the stream's lookup key.
func (w WriteContext) Key() Key {
	return NewKey(w.StreamName, w.StreamNamespace)
}

// Name is the sanitized stream name.
func (w WriteContext) Name() string {
	return Sanitize(w.StreamName)
}

// Namespace is the sanitized stream namespace.
func (w WriteContext) Namespace() string {
	return Sanitize(w.StreamNamespace)
}

// TmpTable is the per-run table the stage is loaded into.
func (w WriteContext) TmpTable() string {
	return tmpTablePrefix + w.Suffix + "_" + w.Name()
}

// DstTable is the table rows are merged into.
func (w WriteContext) DstTable() string {
	return dstTablePrefix + w.Name()
}

// Stage is the remote stage batch files are uploaded to.
func (w WriteContext) Stage() string {
	return w.Namespace() + "_" + w.Name()
}

// StagePath is the run-scoped directory inside the stage. It always ends
// with a slash.
func (w WriteContext) StagePath() string {
	t := w.CreatedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d/%s/",
		w.Name(), t.Year(), int(t.Month()), t.Day(), t.Hour(), w.ConnectionID)
}

func (w WriteContext) String() string {
	return fmt.Sprintf("tmp_table: %s, dst_table: %s, stage: %s, stage_path: %s",
		w.TmpTable(), w.DstTable(), w.Stage(), w.StagePath())
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
