package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"meetsumgo/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database for the given driver type.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS transcripts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				reference TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				char_count INTEGER NOT NULL,
				token_estimate INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'uploaded',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				token TEXT NOT NULL UNIQUE,
				generation_count INTEGER NOT NULL DEFAULT 0,
				last_model TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				reference TEXT NOT NULL UNIQUE,
				transcript_id INTEGER NOT NULL,
				session_id INTEGER,
				style TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'generating',
				raw_content TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				model TEXT NOT NULL DEFAULT '',
				model_name TEXT NOT NULL DEFAULT '',
				fallback_triggered INTEGER NOT NULL DEFAULT 0,
				attempt_count INTEGER NOT NULL DEFAULT 0,
				input_tokens INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				cost_usd REAL NOT NULL DEFAULT 0,
				processing_ms INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(transcript_id) REFERENCES transcripts(id) ON DELETE CASCADE,
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE SET NULL
			)`,
			`CREATE TABLE IF NOT EXISTS summary_edits (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				summary_id INTEGER NOT NULL,
				content TEXT NOT NULL,
				edited_at DATETIME NOT NULL,
				FOREIGN KEY(summary_id) REFERENCES summaries(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS generation_outcomes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				model TEXT NOT NULL,
				success INTEGER NOT NULL,
				processing_ms INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_transcript ON summaries(transcript_id)`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_session ON summaries(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_summary_edits_summary ON summary_edits(summary_id)`,
			`CREATE INDEX IF NOT EXISTS idx_outcomes_session ON generation_outcomes(session_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_transcripts_status ON transcripts(status)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS transcripts (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				reference VARCHAR(64) NOT NULL UNIQUE,
				title VARCHAR(255) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				char_count INT NOT NULL,
				token_estimate INT NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'uploaded',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_transcripts_status (status)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				token VARCHAR(128) NOT NULL UNIQUE,
				generation_count INT NOT NULL DEFAULT 0,
				last_model VARCHAR(20) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS summaries (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				reference VARCHAR(64) NOT NULL UNIQUE,
				transcript_id BIGINT UNSIGNED NOT NULL,
				session_id BIGINT UNSIGNED,
				style VARCHAR(20) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'generating',
				raw_content MEDIUMTEXT NOT NULL,
				content MEDIUMTEXT NOT NULL,
				metadata MEDIUMTEXT NOT NULL,
				model VARCHAR(20) NOT NULL DEFAULT '',
				model_name VARCHAR(100) NOT NULL DEFAULT '',
				fallback_triggered TINYINT NOT NULL DEFAULT 0,
				attempt_count INT NOT NULL DEFAULT 0,
				input_tokens INT NOT NULL DEFAULT 0,
				output_tokens INT NOT NULL DEFAULT 0,
				cost_usd DOUBLE NOT NULL DEFAULT 0,
				processing_ms BIGINT NOT NULL DEFAULT 0,
				error_message TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_summaries_transcript (transcript_id),
				INDEX idx_summaries_session (session_id),
				CONSTRAINT fk_summaries_transcript FOREIGN KEY (transcript_id) REFERENCES transcripts(id) ON DELETE CASCADE,
				CONSTRAINT fk_summaries_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS summary_edits (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				summary_id BIGINT UNSIGNED NOT NULL,
				content MEDIUMTEXT NOT NULL,
				edited_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_summary_edits_summary (summary_id),
				CONSTRAINT fk_summary_edits_summary FOREIGN KEY (summary_id) REFERENCES summaries(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS generation_outcomes (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				session_id BIGINT UNSIGNED NOT NULL,
				model VARCHAR(20) NOT NULL,
				success TINYINT NOT NULL,
				processing_ms BIGINT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_outcomes_session (session_id, created_at),
				CONSTRAINT fk_outcomes_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
