package staging

import (
	"bufio"
	"io"
	"strings"
)

// TimestampLayout formats emitted_at in batch files.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// rowOverhead is the per-row framing of a three-column batch row: two
// quotes per field, two commas, and the newline.
const rowOverhead = 9

var fieldEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// csvWriter writes rows with every field quoted and backslash as the escape
// character, so delimiters and newlines inside JSON never split a column.
type csvWriter struct {
	w *bufio.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: bufio.NewWriter(w)}
}

func (c *csvWriter) Write(fields ...string) error {
	for i, f := range fields {
		if i > 0 {
			if err := c.w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := c.w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := fieldEscaper.WriteString(c.w, f); err != nil {
			return err
		}
		if err := c.w.WriteByte('"'); err != nil {
			return err
		}
	}
	return c.w.WriteByte('\n')
}

func (c *csvWriter) Flush() error {
	return c.w.Flush()
}
