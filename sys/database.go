package sys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"
)

// --- Phase 1: Database Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS track_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			uploader TEXT,
			duration_ms INTEGER DEFAULT 0,
			played_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_track_history_guild ON track_history (guild_id, played_at DESC)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Phase 2: Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Phase 3: Playback History ---

type HistoryEntry struct {
	ID       int64
	GuildID  snowflake.ID
	URL      string
	Title    string
	Uploader string
	Duration time.Duration
	PlayedAt time.Time
}

// historyRetention caps the rows kept per guild.
const historyRetention = 200

func RecordTrackPlayed(ctx context.Context, e *HistoryEntry) error {
	if DB == nil {
		return nil
	}
	if e.PlayedAt.IsZero() {
		e.PlayedAt = time.Now().UTC()
	}
	_, err := DB.ExecContext(ctx, `
		INSERT INTO track_history (guild_id, url, title, uploader, duration_ms, played_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.GuildID.String(), e.URL, e.Title, e.Uploader, e.Duration.Milliseconds(), e.PlayedAt)
	if err != nil {
		return err
	}
	_, err = DB.ExecContext(ctx, `
		DELETE FROM track_history WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM track_history WHERE guild_id = ? ORDER BY played_at DESC, id DESC LIMIT ?
		)
	`, e.GuildID.String(), e.GuildID.String(), historyRetention)
	return err
}

func GetRecentTracks(ctx context.Context, guildID snowflake.ID, limit int) ([]*HistoryEntry, error) {
	if DB == nil {
		return nil, nil
	}
	rows, err := DB.QueryContext(ctx, `
		SELECT id, guild_id, url, title, uploader, duration_ms, played_at
		FROM track_history WHERE guild_id = ? ORDER BY played_at DESC, id DESC LIMIT ?
	`, guildID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		var gid string
		var uploader sql.NullString
		var durationMs int64
		if err := rows.Scan(&e.ID, &gid, &e.URL, &e.Title, &uploader, &durationMs, &e.PlayedAt); err != nil {
			return nil, err
		}
		e.GuildID, err = snowflake.Parse(gid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse guild ID '%s' for history entry %d: %w", gid, e.ID, err)
		}
		e.Uploader = uploader.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
