package engine

import (
	"context"
	"log/slog"

	"github.com/sandboxws/stagesync/pkg/databend"
	"github.com/sandboxws/stagesync/pkg/protocol"
	"github.com/sandboxws/stagesync/pkg/session"
)

// checkObject names the scratch table and stage used by Check.
const checkObject = "_tmp_connection_check"

// Check verifies that the destination accepts the statements a sync issues.
// Failures are reported in the returned status, never as an error.
func Check(ctx context.Context, exec session.Executor, database string) protocol.ConnectionStatus {
	stmts := []string{
		databend.CreateDatabase(database),
		databend.CreateTable(database, checkObject),
		databend.DropTable(database, checkObject),
		databend.CreateStage(checkObject),
		databend.DropStage(checkObject),
	}
	for _, stmt := range stmts {
		if _, err := exec.Execute(ctx, stmt); err != nil {
			slog.Error("connection check failed", "database", database, "error", err)
			return protocol.ConnectionStatus{Status: protocol.StatusFailed, Message: err.Error()}
		}
	}
	return protocol.ConnectionStatus{Status: protocol.StatusSucceeded}
}
