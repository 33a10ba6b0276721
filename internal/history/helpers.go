package history

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = `id, peer, text, src_lang, tgt_lang, status, output, error_kind,
    error_message, loaded, queued_at, started_at, finished_at`

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		peer        sql.NullString
		output      sql.NullString
		errKind     sql.NullString
		errMessage  sql.NullString
		loaded      int
		queuedRaw   string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&peer,
		&entry.Text,
		&entry.SourceLanguage,
		&entry.TargetLanguage,
		&entry.Status,
		&output,
		&errKind,
		&errMessage,
		&loaded,
		&queuedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	entry.Peer = peer.String
	entry.Output = output.String
	entry.ErrorKind = errKind.String
	entry.ErrorMessage = errMessage.String
	entry.Loaded = loaded != 0
	if t, err := parseTimeString(queuedRaw); err == nil {
		entry.QueuedAt = t
	}
	if startedRaw.Valid {
		if t, err := parseTimeString(startedRaw.String); err == nil {
			entry.StartedAt = &t
		}
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			entry.FinishedAt = &t
		}
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
