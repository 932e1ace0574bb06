package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationStep is one rung of the migration ladder. Each step is
// idempotent: it inspects current schema state before attempting any
// DDL, per spec §4.1.
type migrationStep struct {
	version int
	apply   func(tx *sql.Tx) error
}

var migrationLadder = []migrationStep{
	{1, migrateStep1CoreTables},
	{2, migrateStep2OddsScores},
	{3, migrateStep3BetHistoryAndModelMarket},
	{4, migrateStep4IngestionDismissed},
	{5, migrateStep5ModelVersionsDomain},
	{6, migrateStep6TradingTables},
	{7, migrateStep7RunHistory},
	{8, migrateStep8CorrelationIDsAndLogSnapshots},
}

// migrate reads the current schema version and applies every pending
// step in order, recording the new version only after each step's DDL
// succeeds.
func (s *Store) migrate() error {
	if err := s.ensureSchemaVersionTable(); err != nil {
		return err
	}

	current, err := s.currentSchemaVersion()
	if err != nil {
		return err
	}

	for _, step := range migrationLadder {
		if step.version <= current {
			continue
		}

		err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
			if err := step.apply(tx); err != nil {
				return fmt.Errorf("migration step %d: %w", step.version, err)
			}
			_, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, step.version)
			return err
		})
		if err != nil {
			return err
		}

		s.log.Info().Int("version", step.version).Msg("applied migration step")
	}

	return nil
}

func (s *Store) ensureSchemaVersionTable() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	return nil
}

func (s *Store) currentSchemaVersion() (int, error) {
	var version sql.NullInt64
	err := s.conn.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func tableExists(tx *sql.Tx, name string) (bool, error) {
	var found string
	err := tx.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// --- step 1: initial tables -------------------------------------------------

func migrateStep1CoreTables(tx *sql.Tx) error {
	exists, err := tableExists(tx, "fixtures")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(`
		CREATE TABLE fixtures (
			fixture_id TEXT PRIMARY KEY,
			tournament_id TEXT,
			tournament_name TEXT,
			home_team_id TEXT,
			home_team_name TEXT NOT NULL,
			away_team_id TEXT,
			away_team_name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX idx_fixtures_start_time ON fixtures(start_time);
		CREATE INDEX idx_fixtures_tournament_id ON fixtures(tournament_id);
		CREATE INDEX idx_fixtures_home_away_start ON fixtures(home_team_name, away_team_name, start_time);
		CREATE INDEX idx_fixtures_home_team_id ON fixtures(home_team_id);
		CREATE INDEX idx_fixtures_away_team_id ON fixtures(away_team_id);
	`)
	return err
}

// --- step 2: odds, scores, metrics, ingestion_metadata ---------------------

func migrateStep2OddsScores(tx *sql.Tx) error {
	exists, err := tableExists(tx, "odds")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(`
		CREATE TABLE odds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fixture_id TEXT NOT NULL,
			bookmaker_id TEXT,
			bookmaker_name TEXT,
			market_id TEXT,
			market_name TEXT,
			outcome_id TEXT,
			outcome_name TEXT,
			odds_value REAL NOT NULL CHECK (odds_value > 1.0),
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(fixture_id, bookmaker_id, market_id, outcome_id)
		);
		CREATE INDEX idx_odds_fixture_id ON odds(fixture_id);
		CREATE INDEX idx_odds_bookmaker_id ON odds(bookmaker_id);

		CREATE TABLE scores (
			fixture_id TEXT PRIMARY KEY,
			home_score INTEGER,
			away_score INTEGER,
			status TEXT,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX idx_scores_fixture_id ON scores(fixture_id);

		CREATE TABLE metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			value REAL,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE ingestion_metadata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			ingested_at TEXT NOT NULL DEFAULT (datetime('now')),
			records_count INTEGER NOT NULL DEFAULT 0,
			checksum TEXT NOT NULL,
			validation_status TEXT NOT NULL,
			errors TEXT,
			UNIQUE(source, checksum)
		);
	`)
	return err
}

// --- step 3: bet_history + model_versions, model_market added here --------

func migrateStep3BetHistoryAndModelMarket(tx *sql.Tx) error {
	exists, err := tableExists(tx, "bet_history")
	if err != nil {
		return err
	}
	if !exists {
		_, err = tx.Exec(`
			CREATE TABLE bet_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				fixture_id TEXT NOT NULL,
				market_id TEXT,
				market_name TEXT,
				outcome_id TEXT,
				outcome_name TEXT,
				odds REAL NOT NULL,
				stake REAL NOT NULL,
				placed_at TEXT NOT NULL DEFAULT (datetime('now')),
				settled_at TEXT,
				result TEXT NOT NULL DEFAULT 'pending',
				payout REAL NOT NULL DEFAULT 0
			);
			CREATE INDEX idx_bet_history_fixture_id ON bet_history(fixture_id);
			CREATE INDEX idx_bet_history_result ON bet_history(result);
		`)
		if err != nil {
			return err
		}
	}

	modelMarketExists, err := columnExists(tx, "bet_history", "model_market")
	if err != nil {
		return err
	}
	if !modelMarketExists {
		if _, err := tx.Exec(`ALTER TABLE bet_history ADD COLUMN model_market TEXT`); err != nil {
			return err
		}
		if _, err := tx.Exec(`CREATE INDEX idx_bet_history_model_market ON bet_history(model_market)`); err != nil {
			return err
		}
	}

	modelVersionsExist, err := tableExists(tx, "model_versions")
	if err != nil {
		return err
	}
	if !modelVersionsExist {
		_, err = tx.Exec(`
			CREATE TABLE model_versions (
				version_id INTEGER PRIMARY KEY AUTOINCREMENT,
				market TEXT NOT NULL,
				model_path TEXT NOT NULL,
				trained_at TEXT NOT NULL DEFAULT (datetime('now')),
				training_samples INTEGER,
				cv_score REAL,
				is_active INTEGER NOT NULL DEFAULT 0,
				performance_metrics TEXT
			);
			CREATE INDEX idx_model_versions_market ON model_versions(market);
		`)
	}
	return err
}

// --- step 4: ingestion_metadata.dismissed -----------------------------------

func migrateStep4IngestionDismissed(tx *sql.Tx) error {
	exists, err := columnExists(tx, "ingestion_metadata", "dismissed")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(`ALTER TABLE ingestion_metadata ADD COLUMN dismissed INTEGER DEFAULT 0`)
	return err
}

// --- step 5: model_versions.domain + backfill + composite indexes ---------

func migrateStep5ModelVersionsDomain(tx *sql.Tx) error {
	exists, err := columnExists(tx, "model_versions", "domain")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`ALTER TABLE model_versions ADD COLUMN domain TEXT DEFAULT 'betting'`); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE model_versions SET domain = 'betting' WHERE domain IS NULL`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX idx_model_versions_domain_market ON model_versions(domain, market)`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX idx_model_versions_domain_market_active ON model_versions(domain, market, is_active)`); err != nil {
		return err
	}
	return nil
}

// --- step 6: trading tables --------------------------------------------------

func migrateStep6TradingTables(tx *sql.Tx) error {
	exists, err := tableExists(tx, "stocks")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(`
		CREATE TABLE stocks (
			symbol TEXT PRIMARY KEY,
			name TEXT,
			sector TEXT,
			market_cap REAL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE crypto (
			symbol TEXT PRIMARY KEY,
			name TEXT,
			sector TEXT,
			market_cap REAL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			UNIQUE(symbol, asset_type, timestamp)
		);
		CREATE INDEX idx_price_history_symbol_type_ts ON price_history(symbol, asset_type, timestamp);

		CREATE TABLE indicators (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL,
			timestamp TEXT NOT NULL
		);

		CREATE TABLE trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			total_cost REAL NOT NULL,
			strategy TEXT,
			realized_pnl REAL,
			timestamp TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			quantity REAL NOT NULL,
			avg_entry_price REAL NOT NULL,
			current_price REAL,
			unrealized_pnl REAL,
			strategy TEXT,
			stop_loss REAL,
			take_profit REAL,
			opened_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(symbol, asset_type)
		);

		CREATE TABLE portfolio (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cash_balance REAL NOT NULL,
			total_position_value REAL NOT NULL,
			total_portfolio_value REAL NOT NULL,
			unrealized_pnl REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			timestamp TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	return err
}

// --- step 7: run_history ----------------------------------------------------

func migrateStep7RunHistory(tx *sql.Tx) error {
	exists, err := tableExists(tx, "run_history")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(`
		CREATE TABLE run_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_type TEXT NOT NULL,
			domain TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			success INTEGER NOT NULL DEFAULT 0,
			stopped INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			skip_reason TEXT,
			result_data TEXT,
			errors TEXT
		);
		CREATE INDEX idx_run_history_type_started ON run_history(run_type, started_at);
	`)
	return err
}

// --- step 8: correlation ids + log snapshot retention ------------------------

// migrateStep8CorrelationIDsAndLogSnapshots tags run_history and
// model_versions rows with a uuid correlation id (spec §4.8: "run-
// history correlation ids, model version ids") and adds the table the
// cron-driven maintenance sweep writes ring-buffer log snapshots into
// before a retention pass prunes old rows.
func migrateStep8CorrelationIDsAndLogSnapshots(tx *sql.Tx) error {
	runHistoryHasCorrelation, err := columnExists(tx, "run_history", "correlation_id")
	if err != nil {
		return err
	}
	if !runHistoryHasCorrelation {
		if _, err := tx.Exec(`ALTER TABLE run_history ADD COLUMN correlation_id TEXT`); err != nil {
			return err
		}
	}

	modelVersionsHasCorrelation, err := columnExists(tx, "model_versions", "correlation_id")
	if err != nil {
		return err
	}
	if !modelVersionsHasCorrelation {
		if _, err := tx.Exec(`ALTER TABLE model_versions ADD COLUMN correlation_id TEXT`); err != nil {
			return err
		}
	}

	logSnapshotsExist, err := tableExists(tx, "log_snapshots")
	if err != nil {
		return err
	}
	if !logSnapshotsExist {
		if _, err := tx.Exec(`
			CREATE TABLE log_snapshots (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				captured_at TEXT NOT NULL,
				entries_json TEXT NOT NULL
			);
			CREATE INDEX idx_log_snapshots_captured_at ON log_snapshots(captured_at);
		`); err != nil {
			return err
		}
	}

	return nil
}
