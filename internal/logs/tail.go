package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"burstline/internal/logging"
)

const defaultPoll = 250 * time.Millisecond

// Filter keeps lines that carry every non-zero id. It understands both the
// console (key=value) and JSON ("key":value) log formats.
type Filter struct {
	JobID     int64
	PhotoID   int64
	SessionID int64
}

func (f Filter) empty() bool {
	return f.JobID == 0 && f.PhotoID == 0 && f.SessionID == 0
}

// Match reports whether line satisfies the filter.
func (f Filter) Match(line string) bool {
	checks := []struct {
		key string
		id  int64
	}{
		{logging.FieldJobID, f.JobID},
		{logging.FieldPhotoID, f.PhotoID},
		{logging.FieldSessionID, f.SessionID},
	}
	for _, check := range checks {
		if check.id != 0 && !hasField(line, check.key, check.id) {
			return false
		}
	}
	return true
}

func hasField(line, key string, id int64) bool {
	value := strconv.FormatInt(id, 10)
	for _, needle := range []string{key + "=" + value, `"` + key + `":` + value} {
		rest := line
		for {
			idx := strings.Index(rest, needle)
			if idx < 0 {
				break
			}
			end := idx + len(needle)
			if end == len(rest) || !isDigit(rest[end]) {
				return true
			}
			rest = rest[end:]
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

type TailOptions struct {
	// Lines is how many matching lines to print from the end of the file.
	Lines  int
	Follow bool
	Poll   time.Duration
	Filter Filter
}

// Tail sends the last opts.Lines matching lines of path to emit. With Follow
// set it keeps polling for appended lines until ctx is cancelled, which is
// not reported as an error. A missing file is treated as empty so follow
// mode can wait for the daemon to create it.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !opts.Follow {
			return nil
		}
	case err != nil:
		return fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return fmt.Errorf("log path %q is a directory", path)
	}

	lines, offset, err := readLastLines(path, opts.Lines, opts.Filter)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines, offset, err = readForward(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if opts.Filter.Match(line) {
				emit(line)
			}
		}
	}
}

// readLastLines keeps a ring of the last limit matching lines and returns the
// end-of-file offset.
func readLastLines(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.empty() && !filter.Match(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// readForward returns complete lines appended after offset. A file that
// shrank (rotation) is read again from the start.
func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A trailing partial line is picked up on the next poll.
			break
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, offset, nil
}
