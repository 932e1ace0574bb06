package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sharedTables are copied by SyncFromProduction in addition to the
// betting tables: data that both domains reference but that neither
// reset operation truncates on its own.
var sharedTables = []string{"fixtures", "odds", "scores", "ingestion_metadata", "bet_history"}

// SyncFromProduction copies all betting and shared tables from another
// store file into this one, truncating the destination tables first.
// Deterministic: run twice against the same source it produces
// byte-identical destination content (spec §4.1).
func (s *Store) SyncFromProduction(ctx context.Context, sourcePath string) error {
	src, err := sql.Open("sqlite", "file:"+sourcePath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("store: open sync source: %w", err)
	}
	defer src.Close()

	if err := src.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping sync source: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range sharedTables {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return fmt.Errorf("store: truncate %s for sync: %w", table, err)
			}

			rows, err := src.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", table))
			if err != nil {
				return fmt.Errorf("store: read source table %s: %w", table, err)
			}

			cols, err := rows.Columns()
			if err != nil {
				rows.Close()
				return fmt.Errorf("store: columns for %s: %w", table, err)
			}

			placeholders := placeholderList(len(cols))
			insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columnList(cols), placeholders)

			for rows.Next() {
				vals := make([]interface{}, len(cols))
				ptrs := make([]interface{}, len(cols))
				for i := range vals {
					ptrs[i] = &vals[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					rows.Close()
					return fmt.Errorf("store: scan row from %s: %w", table, err)
				}
				if _, err := tx.Exec(insertSQL, vals...); err != nil {
					rows.Close()
					return fmt.Errorf("store: insert synced row into %s: %w", table, err)
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()
		}
		return nil
	})
}

func columnList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func placeholderList(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}
