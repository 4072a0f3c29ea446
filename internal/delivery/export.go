package delivery

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/franz/order-recon/internal/partition"
	"github.com/franz/order-recon/internal/workbook"
)

// ExportSheet is the sheet name of every owner workbook
const ExportSheet = "Datos"

// ArchiveName returns the download name of an export archive
func ArchiveName(day time.Time) string {
	return fmt.Sprintf("Exportacion_Responsables_%s.zip", day.Format("20060102"))
}

// Entry describes one workbook written to an export archive
type Entry struct {
	Owner string
	Name  string
	Rows  int
	Bytes int
}

// WriteArchive writes one <owner>.xlsx per export into a zip on w.
// progress, when not nil, is called after each entry.
func WriteArchive(w io.Writer, exports []partition.Export, progress func(Entry)) ([]Entry, error) {
	zw := zip.NewWriter(w)
	names := newNamer()
	entries := make([]Entry, 0, len(exports))

	for _, e := range exports {
		var buf bytes.Buffer
		if err := workbook.Write(&buf, e.Table, ExportSheet); err != nil {
			return nil, fmt.Errorf("failed to build workbook for %s: %w", e.Owner, err)
		}

		name := names.next(e.Owner) + ".xlsx"
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := fw.Write(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}

		entry := Entry{Owner: e.Owner, Name: name, Rows: e.Table.Len(), Bytes: buf.Len()}
		entries = append(entries, entry)
		if progress != nil {
			progress(entry)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return entries, nil
}

// SanitizeName makes an owner value safe to use as an archive entry name
func SanitizeName(owner string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(owner))

	name = strings.Trim(name, ".")
	if name == "" {
		return "_"
	}
	return name
}

// namer hands out unique sanitised names, compared case-insensitively
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: make(map[string]bool)}
}

func (n *namer) next(owner string) string {
	base := SanitizeName(owner)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s (%d)", base, i)
	}
	n.used[strings.ToLower(name)] = true
	return name
}
