// Package tableload loads declared tables into join-ready row sets. A
// Strategy is looked up by name from the table-loader document; the default
// strategy reads delimited CSV, detecting its encoding from a byte sample
// when the document does not name one.
package tableload

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/config"
	"github.com/mii-cds/cdstoolbox/internal/join"
	"github.com/mii-cds/cdstoolbox/internal/log"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

// Strategy loads one named table given the run's data folder and the
// table's merged loader spec.
type Strategy interface {
	Load(ctx context.Context, dataFolder string, tableName string, spec config.TableLoaderSpec) (*join.Table, error)
}

var (
	mu         sync.RWMutex
	strategies = map[string]Strategy{}
)

// Register adds a named strategy to the registry. Re-registering the same
// name is a no-op, matching the plugin registry's idempotency.
func Register(name string, s Strategy) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := strategies[name]; exists {
		return
	}
	strategies[name] = s
}

// Get looks up a strategy by name.
func Get(name string) (Strategy, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := strategies[name]
	return s, ok
}

func init() {
	Register("default", CSVStrategy{})
}

// CSVStrategy is the default table loader: delimited text, header row names
// columns, missing cells are sentinel-filled, duplicate rows are dropped
// (logged, not fatal), and an empty result is an EmptyTable error.
type CSVStrategy struct {
	Logger log.Logger
}

func (s CSVStrategy) Load(ctx context.Context, dataFolder string, tableName string, spec config.TableLoaderSpec) (*join.Table, error) {
	path := filepath.Join(dataFolder, spec.FileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, tableName, "reading table file", err)
	}

	decoded, err := decodeBytes(raw, spec.CSV.Encoding)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, tableName, "decoding table encoding", err)
	}

	reader := gocsv.DefaultCSVReader(strings.NewReader(decoded)).(*csv.Reader)
	reader.FieldsPerRecord = -1
	if spec.CSV.Delimiter != "" {
		d := []rune(spec.CSV.Delimiter)
		reader.Comma = d[0]
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, cdserr.Wrap(cdserr.BadLine, cdserr.ScopeMapping, tableName, "parsing csv", err)
	}
	if len(records) == 0 {
		return nil, cdserr.New(cdserr.EmptyTable, cdserr.ScopeMapping, fmt.Sprintf("table %q has no rows", tableName))
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	seen := map[string]bool{}
	dupes := 0
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			var v string
			if i < len(rec) {
				v = rec[i]
			}
			if sentinel.IsAbsent(v) {
				v = sentinel.Value
			}
			row[col] = v
		}
		key := strings.Join(rec, "\x1f")
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}

	if dupes > 0 && s.Logger != nil {
		s.Logger.WarnContext(ctx, "dropped duplicate rows", "table", tableName, "count", dupes)
	}
	if len(rows) == 0 {
		return nil, cdserr.New(cdserr.EmptyTable, cdserr.ScopeMapping, fmt.Sprintf("table %q has no rows after dedup", tableName))
	}

	return &join.Table{Rows: rows}, nil
}

// decodeBytes returns raw as UTF-8 text. If encoding is empty, the encoding
// is detected from a byte sample. ISO-8859-1, Latin1 and Windows-1252 are
// decoded via the Windows-1252 charmap, since the corpus's source extracts
// are consistently Western-European hospital exports; UTF-8/ASCII and any
// other encoding are returned unchanged.
func decodeBytes(raw []byte, encoding string) (string, error) {
	if encoding == "" {
		d := chardet.NewTextDetector()
		result, err := d.DetectBest(raw)
		if err == nil && result != nil {
			encoding = result.Charset
		}
	}

	switch strings.ToUpper(strings.TrimSpace(encoding)) {
	case "", "UTF-8", "US-ASCII", "ASCII":
		return string(raw), nil
	case "ISO-8859-1", "LATIN1", "WINDOWS-1252":
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	default:
		return string(raw), nil
	}
}
