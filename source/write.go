package source

import (
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/kscale/go-bootconfig/bootcfg"
)

// WriteFile renders the document to the given path atomically: the
// content is written to a temp file, fsynced and renamed over the
// target. A half-written boot configuration on the boot partition
// leaves the device unbootable, so the replace must never be partial.
func WriteFile(path string, doc *bootcfg.Document) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// Removes the temp file if we never committed.
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(doc.Encode()); err != nil {
		return fmt.Errorf("write boot configuration: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}
