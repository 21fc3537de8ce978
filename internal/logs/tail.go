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

// chunkSize is the step used when walking a log file backwards.
const chunkSize = 32 * 1024

// pollEvery is the re-read cadence while waiting for new lines.
const pollEvery = 250 * time.Millisecond

// TailOptions controls a Tail call. A negative Offset means "read the last
// Limit lines"; a non-negative Offset reads forward from that byte position.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read plus the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file is not an
// error; it yields an empty result at offset zero so pollers keep working
// before the daemon has written anything.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return TailResult{}, nil
	case err != nil:
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	start := opts.Offset
	if start < 0 {
		if start, err = lineStart(path, info.Size(), opts.Limit); err != nil {
			return TailResult{Offset: opts.Offset}, err
		}
	} else if start > info.Size() {
		start = info.Size()
	}

	result, err := readLines(path, start)
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return awaitGrowth(ctx, path, result.Offset, opts.Wait)
	}
	return result, nil
}

// lineStart walks the file backwards in chunks and returns the byte offset
// where the want-th line from the end begins. A want of zero or less lands
// at end of file so the caller starts with an empty page.
func lineStart(path string, size int64, want int) (int64, error) {
	if want <= 0 || size == 0 {
		return size, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// A trailing terminator belongs to the last line rather than starting
	// an empty one after it.
	end := size
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err == nil && last[0] == '\n' {
		end--
	}

	remaining := want
	chunk := make([]byte, chunkSize)
	for end > 0 {
		from := end - chunkSize
		if from < 0 {
			from = 0
		}
		n, err := file.ReadAt(chunk[:end-from], from)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("read log file: %w", err)
		}
		for i := n - 1; i >= 0; i-- {
			if chunk[i] != '\n' {
				continue
			}
			remaining--
			if remaining == 0 {
				return from + int64(i) + 1, nil
			}
		}
		end = from
	}
	return 0, nil
}

// readLines consumes complete lines from offset to end of file. The returned
// offset accounts for every byte consumed, so a follow-up call resumes
// exactly where this one stopped.
func readLines(path string, offset int64) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			result.Lines = append(result.Lines, strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r"))
			result.Offset += int64(len(text))
		}
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
	}
}

// awaitGrowth re-reads from offset until new lines arrive, the wait window
// closes, or the context ends.
func awaitGrowth(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		result, err := readLines(path, offset)
		if err != nil || len(result.Lines) > 0 {
			return result, err
		}
		offset = result.Offset
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-ticker.C:
		}
	}
}
