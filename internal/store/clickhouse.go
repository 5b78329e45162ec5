package store

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/gadicohen93/Veriver/internal/domain"
)

// ClickHouseConfig configures the warehouse connection.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// ClickHouseWarehouse implements Warehouse on ClickHouse.
type ClickHouseWarehouse struct {
	conn  clickhouse.Conn
	table string
}

// OpenClickHouse connects to ClickHouse and verifies the connection.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseWarehouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &ClickHouseWarehouse{conn: conn, table: cfg.Table}, nil
}

// EnsureTable creates the message table if it does not exist.
func (w *ClickHouseWarehouse) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			message_id             Int64,
			channel_id             Int64,
			channel_name           String,
			date                   DateTime64(3, 'UTC'),
			text                   String,
			views                  Int64,
			forwards               Int64,
			replies                Int64,
			has_media              Bool,
			media_type             String,
			media_urls             Array(String),
			processed              Bool,
			created_at             DateTime64(3, 'UTC'),
			edited                 Bool,
			edited_at              Nullable(DateTime64(3, 'UTC')),
			is_pinned              Bool,
			has_reactions          Bool,
			reaction_counts        String,
			toxicity               Float64,
			veracity               Float64,
			risk_level             Float64,
			requires_investigation Bool
		)
		ENGINE = MergeTree
		ORDER BY (channel_id, message_id)`, w.table)

	if err := w.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", w.table, err)
	}
	return nil
}

const insertColumns = `(message_id, channel_id, channel_name, date, text,
	views, forwards, replies, has_media, media_type, media_urls, processed,
	created_at, edited, edited_at, is_pinned, has_reactions, reaction_counts,
	toxicity, veracity, risk_level, requires_investigation)`

// AppendRows inserts the batch. Per-row append failures are reported as
// RowErrors; the send itself failing is a whole-call error.
func (w *ClickHouseWarehouse) AppendRows(ctx context.Context, rows []domain.CanonicalMessageRecord) ([]RowError, error) {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s %s", w.table, insertColumns))
	if err != nil {
		return nil, fmt.Errorf("prepare batch: %w", err)
	}

	var rowErrs []RowError
	appended := 0
	for i := range rows {
		r := &rows[i]
		if err := batch.Append(
			r.MessageID,
			r.ChannelID,
			r.ChannelName,
			r.CapturedAt,
			r.Text,
			int64(r.Views),
			int64(r.Forwards),
			int64(r.Replies),
			r.HasMedia,
			r.MediaType,
			r.MediaURLs,
			r.Processed,
			r.IngestedAt,
			r.Edited,
			r.EditedAt,
			r.Pinned,
			r.HasReactions,
			r.ReactionCounts,
			r.Risk.Toxicity,
			r.Risk.Veracity,
			r.Risk.RiskLevel,
			r.Risk.RequiresInvestigation,
		); err != nil {
			rowErrs = append(rowErrs, RowError{Index: i, Err: err})
			continue
		}
		appended++
	}

	if appended > 0 {
		if err := batch.Send(); err != nil {
			return nil, fmt.Errorf("send batch: %w", err)
		}
	} else {
		_ = batch.Abort()
	}
	return rowErrs, nil
}

// UpdateMessage applies an in-place mutation for the mutable fields of one
// record key.
func (w *ClickHouseWarehouse) UpdateMessage(ctx context.Context, key domain.Key, fields domain.MutableFields) error {
	stmt := fmt.Sprintf(`
		ALTER TABLE %s UPDATE
			text = ?,
			views = ?,
			forwards = ?,
			replies = ?,
			edited = ?,
			edited_at = ?,
			has_reactions = ?,
			reaction_counts = ?
		WHERE channel_id = ? AND message_id = ?`, w.table)

	if err := w.conn.Exec(ctx, stmt,
		fields.Text,
		int64(fields.Views),
		int64(fields.Forwards),
		int64(fields.Replies),
		fields.Edited,
		fields.EditedAt,
		fields.HasReactions,
		fields.ReactionCounts,
		key.ChannelID,
		key.MessageID,
	); err != nil {
		return fmt.Errorf("update message %d/%d: %w", key.ChannelID, key.MessageID, err)
	}
	return nil
}

const selectColumns = `message_id, channel_id, channel_name, date, text,
	views, forwards, replies, has_media, media_type, media_urls, processed,
	created_at, edited, edited_at, is_pinned, has_reactions, reaction_counts,
	toxicity, veracity, risk_level, requires_investigation`

// QueryRecent returns records captured within the window, newest first.
func (w *ClickHouseWarehouse) QueryRecent(ctx context.Context, since time.Duration) ([]domain.CanonicalMessageRecord, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE date >= now() - toIntervalSecond(?) ORDER BY date DESC",
		selectColumns, w.table,
	)
	rows, err := w.conn.Query(ctx, query, int64(since.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return scanRecords(rows)
}

// QueryLast returns the limit most recent records, newest first.
func (w *ClickHouseWarehouse) QueryLast(ctx context.Context, limit int) ([]domain.CanonicalMessageRecord, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY date DESC LIMIT ?",
		selectColumns, w.table,
	)
	rows, err := w.conn.Query(ctx, query, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("query last: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}) ([]domain.CanonicalMessageRecord, error) {
	defer rows.Close()

	records := []domain.CanonicalMessageRecord{}
	for rows.Next() {
		var (
			r                        domain.CanonicalMessageRecord
			views, forwards, replies int64
		)
		if err := rows.Scan(
			&r.MessageID,
			&r.ChannelID,
			&r.ChannelName,
			&r.CapturedAt,
			&r.Text,
			&views,
			&forwards,
			&replies,
			&r.HasMedia,
			&r.MediaType,
			&r.MediaURLs,
			&r.Processed,
			&r.IngestedAt,
			&r.Edited,
			&r.EditedAt,
			&r.Pinned,
			&r.HasReactions,
			&r.ReactionCounts,
			&r.Risk.Toxicity,
			&r.Risk.Veracity,
			&r.Risk.RiskLevel,
			&r.Risk.RequiresInvestigation,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Views = int(views)
		r.Forwards = int(forwards)
		r.Replies = int(replies)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Close releases the connection.
func (w *ClickHouseWarehouse) Close() error {
	return w.conn.Close()
}
