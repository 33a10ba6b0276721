package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Lines is how many existing lines to print first; 0 prints none.
	Lines int
	// Follow keeps reading appended lines until ctx is done.
	Follow bool
	// Match keeps only lines containing this substring.
	Match string
	// Poll is the follow interval.
	Poll time.Duration
}

// Tail writes the selected lines of path to onLine. A missing file yields no
// lines; in follow mode Tail waits for it to appear. It returns nil when ctx
// ends a follow.
func Tail(ctx context.Context, path string, opts Options, onLine func(string)) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}
	keep := func(line string) bool {
		return opts.Match == "" || strings.Contains(line, opts.Match)
	}

	lines, offset, err := lastLines(path, opts.Lines, keep)
	if err != nil {
		return err
	}
	for _, line := range lines {
		onLine(line)
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		offset, err = readFrom(path, offset, keep, onLine)
		if err != nil {
			return err
		}
	}
}

// lastLines returns up to limit kept lines from the end of path and the
// offset just past them.
func lastLines(path string, limit int, keep func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		if !keep(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		count = min(count+1, limit)
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := (next - count + limit) % limit
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// readFrom emits complete lines written after offset. A file shorter than
// offset was rotated or truncated and is read from the start.
func readFrom(path string, offset int64, keep func(string) bool, onLine func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	consumed, err := scanLines(file, func(line string) {
		if keep(line) {
			onLine(line)
		}
	})
	return offset + consumed, err
}

// scanLines calls fn for each newline-terminated line and returns the bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}
