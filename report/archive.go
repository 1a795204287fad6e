package report

import (
	"fmt"

	"github.com/vsem-svoim/basecap/report/localstore"
)

// Archive renders the report into the local archive under ref, usually the
// run ID. An existing ref is refused.
func Archive(store *localstore.Store, ref string, rpt interface{}) error {
	w, err := store.OpenWriter()
	if err != nil {
		return fmt.Errorf("failed to open archive writer: %w", err)
	}

	if err := Render(w, rpt); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to render report into archive: %w", err)
	}
	return w.Commit(ref)
}
