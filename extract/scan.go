package extract

import (
	"bufio"
	"io"
	"regexp"

	"golang.org/x/xerrors"
)

// ScanBlock reads a plain-text list and returns the field matches found in
// the block that follows the first line matching start. The block ends at
// the next line matching end. A field pattern with a capture group yields
// the group; otherwise the whole match is used.
func ScanBlock(r io.Reader, start, end, field *regexp.Regexp) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		inBlock bool
		values  []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !inBlock {
			inBlock = start.MatchString(line)
			continue
		}
		if end.MatchString(line) {
			break
		}
		for _, m := range field.FindAllStringSubmatch(line, -1) {
			if len(m) > 1 {
				values = append(values, m[1])
			} else {
				values = append(values, m[0])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("scan error: %w", err)
	}
	return uniq(values), nil
}
