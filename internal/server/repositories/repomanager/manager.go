package repomanager

import (
	"context"
	"database/sql"

	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/server/repositories/messages"
	"github.com/nazarriya/chatrelay/internal/server/repositories/sessions"
	"github.com/nazarriya/chatrelay/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so that services can
// run the same repository code inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Messages(db dbx.DBTX) messages.Repository
}
