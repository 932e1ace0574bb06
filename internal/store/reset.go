package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ResetReport is the structured result of a destructive reset
// operation (spec §4.1).
type ResetReport struct {
	BackupPath     string
	RecordsDeleted map[string]int64
	TotalDeleted   int64
}

var bettingTables = []string{"bet_history", "scores", "odds", "ingestion_metadata", "fixtures"}
var tradingTables = []string{"trades", "positions", "portfolio", "indicators", "price_history", "crypto", "stocks"}

// Backuper is the minimal collaborator reset operations depend on;
// satisfied by internal/backup's S3 client.
type Backuper interface {
	Backup(ctx context.Context, dbPath string) (string, error)
}

// ResetBettingDomain truncates all betting-domain tables after taking
// a backup, per spec §4.1 destructive-operation contract.
func (s *Store) ResetBettingDomain(ctx context.Context, backuper Backuper) (ResetReport, error) {
	return s.resetTables(ctx, backuper, bettingTables)
}

// ResetTradingDomain truncates all trading-domain tables after taking
// a backup.
func (s *Store) ResetTradingDomain(ctx context.Context, backuper Backuper) (ResetReport, error) {
	return s.resetTables(ctx, backuper, tradingTables)
}

// ResetDatabase truncates every table, optionally preserving
// model_versions (spec §4.1: "reset_database(preserve_models=True)
// keeps model_versions intact").
func (s *Store) ResetDatabase(ctx context.Context, backuper Backuper, preserveModels bool) (ResetReport, error) {
	tables := append(append([]string{}, bettingTables...), tradingTables...)
	if !preserveModels {
		tables = append(tables, "model_versions")
	}
	return s.resetTables(ctx, backuper, tables)
}

func (s *Store) resetTables(ctx context.Context, backuper Backuper, tables []string) (ResetReport, error) {
	report := ResetReport{RecordsDeleted: make(map[string]int64)}

	if backuper != nil {
		path, err := backuper.Backup(ctx, s.path)
		if err != nil {
			return report, fmt.Errorf("store: reset backup failed: %w", err)
		}
		report.BackupPath = path
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return report, fmt.Errorf("store: disable foreign keys: %w", err)
	}
	defer s.conn.Exec("PRAGMA foreign_keys = ON")

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			res, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table))
			if err != nil {
				return fmt.Errorf("store: truncate %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			report.RecordsDeleted[table] = n
			report.TotalDeleted += n

			if _, err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
				return fmt.Errorf("store: reset autoincrement for %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return report, fmt.Errorf("store: re-enable foreign keys: %w", err)
	}

	if err := s.Vacuum(); err != nil {
		return report, fmt.Errorf("store: vacuum after reset: %w", err)
	}

	return report, nil
}
