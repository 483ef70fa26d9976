// Package databend renders the statements the destination issues against
// Databend and parses the results it reads back.
package databend

import (
	"fmt"
	"strings"
)

// Raw table columns.
const (
	ColumnID        = "id"
	ColumnData      = "data"
	ColumnEmittedAt = "emitted_at"
)

// MaxFilesInCopy is the largest file list COPY INTO accepts. Larger sets are
// loaded by path instead.
const MaxFilesInCopy = 1000

func CreateDatabase(database string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)
}

func CreateStage(stage string) string {
	return fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", stage)
}

func DropStage(stage string) string {
	return fmt.Sprintf("DROP STAGE IF EXISTS %s", stage)
}

// RemoveStage deletes every object under path in stage. An empty path
// clears the whole stage.
func RemoveStage(stage, path string) string {
	return fmt.Sprintf("REMOVE @%s/%s", stage, path)
}

// PresignUpload requests a presigned PUT URL for path+file inside stage.
// path must end with a slash.
func PresignUpload(stage, path, file string) string {
	return fmt.Sprintf("PRESIGN UPLOAD @%s/%s%s", stage, path, file)
}

// CreateTable creates the fixed three-column raw table.
func CreateTable(database, table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s (%s String, %s JSON, %s Timestamp DEFAULT now()) CLUSTER BY(%s)",
		database, table, ColumnID, ColumnData, ColumnEmittedAt, ColumnID)
}

func DropTable(database, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", database, table)
}

func TruncateTable(database, table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s.%s", database, table)
}

// CopyInto bulk-loads table from the CSV files under stage/path. files is
// the clause rendered by FilesClause.
func CopyInto(database, table, stage, path, files string) string {
	return fmt.Sprintf(
		"COPY INTO %s.%s FROM @%s/%s%s file_format = (type = 'CSV' escape = '\\\\' compression = auto)",
		database, table, stage, path, files)
}

// InsertSelect appends every row of src into dst.
func InsertSelect(database, src, dst string) string {
	return fmt.Sprintf("INSERT INTO %s.%s SELECT * FROM %s.%s", database, dst, database, src)
}

// FilesClause renders a COPY INTO file list. It returns an empty string when
// files is empty or too long to enumerate.
func FilesClause(files []string) string {
	if len(files) == 0 || len(files) >= MaxFilesInCopy {
		return ""
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", "''") + "'"
	}
	return " files = (" + strings.Join(quoted, ", ") + ")"
}
