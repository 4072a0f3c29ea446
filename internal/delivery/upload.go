// Package delivery moves tables in and out of zip archives: it reads the
// uploaded bundle of source workbooks and packages per-owner exports for
// download.
package delivery

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/franz/order-recon/internal/source"
	"github.com/franz/order-recon/internal/table"
	"github.com/franz/order-recon/internal/util"
	"github.com/franz/order-recon/internal/workbook"
)

// ErrInvalidArchive indicates the upload is not a readable zip
var ErrInvalidArchive = errors.New("invalid archive")

// Upload is the parsed content of an uploaded archive
type Upload struct {
	Sources source.Set
	Ignored []string
}

// ReadArchive parses every expected workbook found in a zip archive.
// Entries are matched on their base name so a bundle zipped inside a single
// folder is accepted. Unknown entries are ignored. A missing ORDERS entry is
// not an error here; the pipeline decides what is required.
func ReadArchive(r io.ReaderAt, size int64) (*Upload, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	up := &Upload{Sources: make(source.Set)}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		base := path.Base(entry.Name)
		def, ok := source.ByFileName(base)
		if !ok || strings.HasPrefix(entry.Name, "__MACOSX/") {
			up.Ignored = append(up.Ignored, entry.Name)
			util.DebugLog("Ignoring archive entry %s", entry.Name)
			continue
		}
		if _, dup := up.Sources[def.Tag]; dup {
			up.Ignored = append(up.Ignored, entry.Name)
			util.WarnLog("Archive has more than one %s, using the first", def.FileName)
			continue
		}

		t, err := readEntry(entry, def)
		if err != nil {
			return nil, err
		}
		up.Sources[def.Tag] = t
		util.DebugLog("Read %s: %d rows, %d columns", def.FileName, t.Len(), t.Width())
	}

	return up, nil
}

func readEntry(entry *zip.File, def source.Definition) (*table.Table, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, entry.Name, err)
	}
	defer rc.Close()

	t, err := workbook.Read(rc, string(def.Tag))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return t, nil
}
