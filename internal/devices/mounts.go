package devices

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mount is one line of /proc/mounts.
type Mount struct {
	Device string
	Path   string
	FSType string
}

// ParseMounts reads the /proc/mounts format.  Malformed lines are skipped.
func ParseMounts(r io.Reader) ([]Mount, error) {
	var mounts []Mount
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if m, ok := parseMountLine(scanner.Text()); ok {
			mounts = append(mounts, m)
		}
	}
	return mounts, scanner.Err()
}

func readMounts(path string) ([]Mount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseMounts(f)
}

// parseMountLine parses "device mountpoint fstype options dump pass".
func parseMountLine(line string) (Mount, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Mount{}, false
	}
	return Mount{
		Device: unescapeMountPath(fields[0]),
		Path:   unescapeMountPath(fields[1]),
		FSType: fields[2],
	}, true
}

// unescapeMountPath decodes the \ooo octal escapes the kernel uses for
// blanks and backslashes in /proc/mounts fields.
func unescapeMountPath(field string) string {
	if !strings.Contains(field, `\`) {
		return field
	}
	out := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '\\' && i+4 <= len(field) {
			if v, err := strconv.ParseUint(field[i+1:i+4], 8, 8); err == nil {
				out = append(out, byte(v))
				i += 3
				continue
			}
		}
		out = append(out, field[i])
	}
	return string(out)
}
