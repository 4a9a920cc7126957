package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL UNIQUE,
		display_name TEXT,
		date_processed REAL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		audio BLOB,
		audio_type TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS speakers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS utterances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		speaker_id INTEGER REFERENCES speakers(id),
		start_time TEXT,
		end_time TEXT,
		start_ms REAL NOT NULL,
		end_ms REAL NOT NULL,
		text TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_utterances_conversation ON utterances(conversation_id, start_ms);
	CREATE INDEX IF NOT EXISTS idx_utterances_speaker ON utterances(speaker_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		speaker_name TEXT NOT NULL,
		source_file TEXT NOT NULL DEFAULT '',
		created_at REAL NOT NULL
	);
`

// Store provides read-write access to the backend database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "speakerdash", "fixture.sqlite")
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const conversationColumns = `
	c.id, c.conversation_id, c.display_name, c.date_processed, c.duration_seconds, c.audio_type,
	(SELECT COUNT(DISTINCT u.speaker_id) FROM utterances u WHERE u.conversation_id = c.id AND u.speaker_id IS NOT NULL)
`

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (Conversation, error) {
	var c Conversation
	var displayName sql.NullString
	var processed sql.NullFloat64
	if err := row.Scan(&c.ID, &c.ConversationID, &displayName, &processed,
		&c.DurationSeconds, &c.AudioType, &c.SpeakerCount); err != nil {
		return Conversation{}, err
	}
	if displayName.Valid {
		c.DisplayName = &displayName.String
	}
	if processed.Valid {
		t := timeFromUnix(processed.Float64)
		c.ProcessedAt = &t
	}
	return c, nil
}

// Conversations returns every conversation, most recently processed first.
func (s *Store) Conversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+conversationColumns+`
		FROM conversations c
		ORDER BY c.date_processed DESC, c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Conversation returns one conversation by database id, or nil when absent.
func (s *Store) Conversation(ctx context.Context, id int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+`
		FROM conversations c WHERE c.id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// ConversationAudio returns the stored recording of a conversation. data is
// nil when none was stored.
func (s *Store) ConversationAudio(ctx context.Context, id int64) (data []byte, contentType string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT audio, audio_type FROM conversations WHERE id = ?`, id)
	if err := row.Scan(&data, &contentType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("scan audio: %w", err)
	}
	return data, contentType, nil
}

// CreateConversation inserts a conversation and its utterances in one
// transaction and returns the new database id.
func (s *Store) CreateConversation(ctx context.Context, nc NewConversation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	processed := nc.ProcessedAt
	if processed.IsZero() {
		processed = time.Now()
	}
	var displayName any
	if strings.TrimSpace(nc.DisplayName) != "" {
		displayName = strings.TrimSpace(nc.DisplayName)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, display_name, date_processed, duration_seconds, audio, audio_type)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nc.ConversationID, displayName, unixFromTime(processed), nc.DurationSeconds, nc.Audio, nc.AudioType)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	convID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversation id: %w", err)
	}

	speakerIDs := map[string]int64{}
	for _, u := range nc.Utterances {
		var speakerID any
		if name := strings.TrimSpace(u.SpeakerName); name != "" {
			id, ok := speakerIDs[name]
			if !ok {
				id, err = ensureSpeaker(ctx, tx, name)
				if err != nil {
					return 0, err
				}
				speakerIDs[name] = id
			}
			speakerID = id
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO utterances (conversation_id, speaker_id, start_time, end_time, start_ms, end_ms, text)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, convID, speakerID, formatOffset(u.StartMs), formatOffset(u.EndMs), u.StartMs, u.EndMs, u.Text); err != nil {
			return 0, fmt.Errorf("insert utterance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return convID, nil
}

// RenameConversation sets a conversation's display name.
func (s *Store) RenameConversation(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET display_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	return requireRow(res)
}

// DeleteConversation removes a conversation and its utterances.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM utterances WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete utterances: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

const speakerColumns = `
	s.id, s.name, s.created_at,
	COUNT(u.id),
	COALESCE(SUM(u.end_ms - u.start_ms), 0)
`

func scanSpeaker(row scanner) (Speaker, error) {
	var sp Speaker
	var created float64
	if err := row.Scan(&sp.ID, &sp.Name, &created, &sp.UtteranceCount, &sp.TotalDurationMs); err != nil {
		return Speaker{}, err
	}
	sp.CreatedAt = timeFromUnix(created)
	return sp, nil
}

// Speakers returns every speaker with utterance statistics, by name.
func (s *Store) Speakers(ctx context.Context) ([]Speaker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+speakerColumns+`
		FROM speakers s
		LEFT JOIN utterances u ON u.speaker_id = s.id
		GROUP BY s.id
		ORDER BY s.name COLLATE NOCASE ASC, s.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query speakers: %w", err)
	}
	defer rows.Close()

	var speakers []Speaker
	for rows.Next() {
		sp, err := scanSpeaker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan speaker: %w", err)
		}
		speakers = append(speakers, sp)
	}
	return speakers, rows.Err()
}

// Speaker returns one speaker by id, or nil when absent.
func (s *Store) Speaker(ctx context.Context, id int64) (*Speaker, error) {
	return s.speakerWhere(ctx, `s.id = ?`, id)
}

// SpeakerByName returns the speaker with name, or nil when absent.
func (s *Store) SpeakerByName(ctx context.Context, name string) (*Speaker, error) {
	return s.speakerWhere(ctx, `s.name = ?`, name)
}

func (s *Store) speakerWhere(ctx context.Context, where string, arg any) (*Speaker, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+speakerColumns+`
		FROM speakers s
		LEFT JOIN utterances u ON u.speaker_id = s.id
		WHERE `+where+`
		GROUP BY s.id`, arg)
	sp, err := scanSpeaker(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan speaker: %w", err)
	}
	return &sp, nil
}

// CreateSpeaker adds a speaker. When the name is taken the existing speaker
// is returned and created is false.
func (s *Store) CreateSpeaker(ctx context.Context, name string) (sp Speaker, created bool, err error) {
	existing, err := s.SpeakerByName(ctx, name)
	if err != nil {
		return Speaker{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO speakers (name, created_at) VALUES (?, ?)`, name, unixFromTime(now))
	if err != nil {
		return Speaker{}, false, fmt.Errorf("insert speaker: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Speaker{}, false, fmt.Errorf("speaker id: %w", err)
	}
	return Speaker{ID: id, Name: name, CreatedAt: now}, true, nil
}

// RenameSpeaker changes a speaker's name.
func (s *Store) RenameSpeaker(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE speakers SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename speaker: %w", err)
	}
	return requireRow(res)
}

// DeleteSpeaker removes a speaker that no utterance references.
func (s *Store) DeleteSpeaker(ctx context.Context, id int64) (Speaker, error) {
	sp, err := s.Speaker(ctx, id)
	if err != nil {
		return Speaker{}, err
	}
	if sp == nil {
		return Speaker{}, ErrNotFound
	}
	if sp.UtteranceCount > 0 {
		return *sp, ErrSpeakerInUse
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM speakers WHERE id = ?`, id); err != nil {
		return Speaker{}, fmt.Errorf("delete speaker: %w", err)
	}
	return *sp, nil
}

// ReassignUtterances moves every utterance of one speaker to another. A
// non-nil conversationID limits the move to that conversation.
func (s *Store) ReassignUtterances(ctx context.Context, fromID, toID int64, conversationID *int64) (int64, error) {
	query := `UPDATE utterances SET speaker_id = ? WHERE speaker_id = ?`
	args := []any{toID, fromID}
	if conversationID != nil {
		query += ` AND conversation_id = ?`
		args = append(args, *conversationID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign utterances: %w", err)
	}
	return res.RowsAffected()
}

const utteranceColumns = `
	u.id, u.conversation_id, u.speaker_id, s.name, u.start_time, u.end_time, u.start_ms, u.end_ms, u.text
`

func scanUtterance(row scanner) (Utterance, error) {
	var u Utterance
	var speakerID sql.NullInt64
	var speakerName, startTime, endTime, text sql.NullString
	if err := row.Scan(&u.ID, &u.ConversationID, &speakerID, &speakerName,
		&startTime, &endTime, &u.StartMs, &u.EndMs, &text); err != nil {
		return Utterance{}, err
	}
	if speakerID.Valid {
		u.SpeakerID = &speakerID.Int64
	}
	if speakerName.Valid {
		u.SpeakerName = &speakerName.String
	}
	if startTime.Valid {
		u.StartTime = &startTime.String
	}
	if endTime.Valid {
		u.EndTime = &endTime.String
	}
	if text.Valid {
		u.Text = &text.String
	}
	return u, nil
}

// UtterancesForConversation returns a conversation's utterances in time
// order.
func (s *Store) UtterancesForConversation(ctx context.Context, conversationID int64) ([]Utterance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+utteranceColumns+`
		FROM utterances u
		LEFT JOIN speakers s ON s.id = u.speaker_id
		WHERE u.conversation_id = ?
		ORDER BY u.start_ms ASC, u.id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query utterances: %w", err)
	}
	defer rows.Close()

	var utts []Utterance
	for rows.Next() {
		u, err := scanUtterance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan utterance: %w", err)
		}
		utts = append(utts, u)
	}
	return utts, rows.Err()
}

// Utterance returns one utterance by id, or nil when absent.
func (s *Store) Utterance(ctx context.Context, id int64) (*Utterance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+utteranceColumns+`
		FROM utterances u
		LEFT JOIN speakers s ON s.id = u.speaker_id
		WHERE u.id = ?`, id)
	u, err := scanUtterance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan utterance: %w", err)
	}
	return &u, nil
}

// UpdateUtterance sets an utterance's speaker and/or text; nil arguments are
// left unchanged.
func (s *Store) UpdateUtterance(ctx context.Context, id int64, speakerID *int64, text *string) error {
	var sets []string
	var args []any
	if speakerID != nil {
		sets = append(sets, "speaker_id = ?")
		args = append(args, *speakerID)
	}
	if text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *text)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE utterances SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update utterance: %w", err)
	}
	return requireRow(res)
}

// Embeddings returns every stored embedding grouped by speaker name order.
func (s *Store) Embeddings(ctx context.Context) ([]Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, speaker_name, source_file, created_at
		FROM embeddings
		ORDER BY speaker_name COLLATE NOCASE ASC, created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var e Embedding
		var created float64
		if err := rows.Scan(&e.ID, &e.SpeakerName, &e.SourceFile, &created); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.CreatedAt = timeFromUnix(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEmbeddings returns how many embeddings speakerName has.
func (s *Store) CountEmbeddings(ctx context.Context, speakerName string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE speaker_name = ?`, speakerName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// AddEmbedding stores an embedding record.
func (s *Store) AddEmbedding(ctx context.Context, e Embedding) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, speaker_name, source_file, created_at) VALUES (?, ?, ?, ?)
	`, e.ID, e.SpeakerName, e.SourceFile, unixFromTime(e.CreatedAt)); err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddingsForSpeaker removes all of a speaker's embeddings and
// returns how many were removed.
func (s *Store) DeleteEmbeddingsForSpeaker(ctx context.Context, speakerName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE speaker_name = ?`, speakerName)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	return res.RowsAffected()
}

// DeleteEmbedding removes one embedding and returns it.
func (s *Store) DeleteEmbedding(ctx context.Context, id string) (Embedding, error) {
	var e Embedding
	var created float64
	err := s.db.QueryRowContext(ctx, `SELECT id, speaker_name, source_file, created_at FROM embeddings WHERE id = ?`, id).
		Scan(&e.ID, &e.SpeakerName, &e.SourceFile, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Embedding{}, ErrNotFound
		}
		return Embedding{}, fmt.Errorf("scan embedding: %w", err)
	}
	e.CreatedAt = timeFromUnix(created)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id); err != nil {
		return Embedding{}, fmt.Errorf("delete embedding: %w", err)
	}
	return e, nil
}

func ensureSpeaker(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM speakers WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup speaker: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO speakers (name, created_at) VALUES (?, ?)`, name, unixFromTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("insert speaker: %w", err)
	}
	return res.LastInsertId()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// formatOffset renders a millisecond offset as HH:MM:SS.mmm.
func formatOffset(ms float64) string {
	if ms < 0 {
		ms = 0
	}
	total := int64(ms)
	h := total / 3_600_000
	m := total / 60_000 % 60
	sec := total / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, total%1000)
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
