package tableload

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/config"
	"github.com/mii-cds/cdstoolbox/internal/join"
	"github.com/mii-cds/cdstoolbox/internal/log"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

func init() {
	Register("badline-recovery", BadLineRecovery{})
}

// ByteRange names a [Start, End) slice of an otherwise-unsplittable line,
// recovered as one field value when the delimited split produces the wrong
// column count.
type ByteRange struct {
	Start int
	End   int
}

// BadLineRecovery generalizes the original loader's hardcoded column-repair
// for one malformed source file: any record whose field count does not
// match the header is re-split from its raw line using a fixed set of byte
// ranges instead of the delimiter, one range per expected column.
type BadLineRecovery struct {
	Logger     log.Logger
	ByteRanges []ByteRange
}

func (s BadLineRecovery) Load(ctx context.Context, dataFolder string, tableName string, spec config.TableLoaderSpec) (*join.Table, error) {
	path := filepath.Join(dataFolder, spec.FileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, tableName, "opening table file", err)
	}
	defer f.Close()

	delim := spec.CSV.Delimiter
	if delim == "" {
		delim = ","
	}

	scanner := bufio.NewScanner(f)
	var header []string
	var rows []map[string]string
	lineNo := 0
	recovered := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		fields := strings.Split(line, delim)

		if lineNo == 1 {
			header = fields
			continue
		}

		if len(s.ByteRanges) > 0 && len(fields) != len(header) {
			fields = splitByRanges(line, s.ByteRanges)
			recovered++
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			var v string
			if i < len(fields) {
				v = fields[i]
			}
			if sentinel.IsAbsent(v) {
				v = sentinel.Value
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, cdserr.Wrap(cdserr.BadLine, cdserr.ScopeMapping, tableName, "scanning table file", err)
	}

	if recovered > 0 && s.Logger != nil {
		s.Logger.WarnContext(ctx, "recovered malformed lines via byte-range split", "table", tableName, "count", recovered)
	}
	if len(rows) == 0 {
		return nil, cdserr.New(cdserr.EmptyTable, cdserr.ScopeMapping, fmt.Sprintf("table %q has no rows", tableName))
	}

	return &join.Table{Rows: rows}, nil
}

func splitByRanges(line string, ranges []ByteRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		start, end := r.Start, r.End
		if start > len(line) {
			start = len(line)
		}
		if end > len(line) {
			end = len(line)
		}
		if start > end {
			start = end
		}
		out = append(out, strings.TrimSpace(line[start:end]))
	}
	return out
}
