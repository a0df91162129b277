package logship

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// KernelSource reads the kernel ring buffer via klogctl(2), the same
// syscall `dmesg` uses, per spec §4.5's "kernel ring buffer" source.
type KernelSource struct {
	severityFloor int16
	statPath      string
}

// NewKernelSource creates a KernelSource filtering to severities at or
// below severityFloor (lower is more severe, the syslog convention).
func NewKernelSource(severityFloor int16) *KernelSource {
	return &KernelSource{severityFloor: severityFloor, statPath: "/proc/stat"}
}

func (k *KernelSource) Name() string { return "kernel" }

// bootTimeUTC reads `btime` from /proc/stat, the kernel's own record of
// when it booted, per spec §4.5: "boot_time_utc is derived from /proc/stat
// btime".
func (k *KernelSource) bootTimeUTC() (int64, error) {
	f, err := os.Open(k.statPath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", k.statPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "btime ") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return 0, fmt.Errorf("malformed btime line: %q", line)
			}
			return strconv.ParseInt(fields[1], 10, 64)
		}
	}
	return 0, fmt.Errorf("btime not found in %s", k.statPath)
}

// parseKernelLine parses one klogctl record of the form
// "<priority>[monotonic.usec] message", returning the syslog severity
// (priority & 0x7), the monotonic seconds-since-boot offset, and the
// message text.
func parseKernelLine(line string) (severity int16, monotonicSec float64, message string, ok bool) {
	if !strings.HasPrefix(line, "<") {
		return 0, 0, "", false
	}
	end := strings.IndexByte(line, '>')
	if end < 0 {
		return 0, 0, "", false
	}
	priority, err := strconv.Atoi(line[1:end])
	if err != nil {
		return 0, 0, "", false
	}
	severity = int16(priority & 0x7)

	rest := strings.TrimSpace(line[end+1:])
	if !strings.HasPrefix(rest, "[") {
		return severity, 0, rest, true
	}
	closeIdx := strings.IndexByte(rest, ']')
	if closeIdx < 0 {
		return severity, 0, rest, true
	}
	tsField := strings.TrimSpace(rest[1:closeIdx])
	monotonicSec, _ = strconv.ParseFloat(tsField, 64)
	message = strings.TrimSpace(rest[closeIdx+1:])
	return severity, monotonicSec, message, true
}

func (k *KernelSource) Collect(authDir string, backfillLimit int) ([]Entry, string, error) {
	cursor, hasCursor, err := loadCursor(authDir, k.Name())
	if err != nil {
		return nil, "", err
	}
	var lastSeen float64
	if hasCursor {
		lastSeen, _ = strconv.ParseFloat(cursor, 64)
	}

	n, err := unix.Klogctl(unix.SYSLOG_ACTION_SIZE_BUFFER, nil)
	if err != nil {
		return nil, "", fmt.Errorf("klogctl size query: %w", err)
	}
	if n <= 0 {
		n = 256 * 1024
	}
	buf := make([]byte, n)
	read, err := unix.Klogctl(unix.SYSLOG_ACTION_READ_ALL, buf)
	if err != nil {
		return nil, "", fmt.Errorf("klogctl read: %w", err)
	}

	bootUTC, err := k.bootTimeUTC()
	if err != nil {
		return nil, "", err
	}

	var entries []Entry
	maxSeen := lastSeen
	for _, line := range strings.Split(string(buf[:read]), "\n") {
		severity, monotonic, message, ok := parseKernelLine(line)
		if !ok || message == "" {
			continue
		}
		if severity > k.severityFloor {
			continue
		}
		if hasCursor && monotonic <= lastSeen {
			continue
		}
		if monotonic > maxSeen {
			maxSeen = monotonic
		}
		entries = append(entries, Entry{
			Source:          k.Name(),
			TimestampUTCSec: bootUTC + int64(monotonic),
			Severity:        severity,
			Message:         message,
		})
	}

	if !hasCursor && backfillLimit > 0 && len(entries) > backfillLimit {
		entries = entries[len(entries)-backfillLimit:]
	}

	return entries, strconv.FormatFloat(maxSeen, 'f', -1, 64), nil
}
