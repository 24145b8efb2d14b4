package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ApplyMySQLScript runs a multi-statement migration with foreign key checks off.
// FOREIGN_KEY_CHECKS is a session variable, so all three statements share one connection.
func ApplyMySQLScript(ctx context.Context, dbx *sqlx.DB, script string) error {
	conn, err := dbx.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return fmt.Errorf("disable fk checks: %w", err)
	}
	if _, err := conn.ExecContext(ctx, script); err != nil {
		_, _ = conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
		return fmt.Errorf("exec migration: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		return fmt.Errorf("enable fk checks: %w", err)
	}
	return nil
}
