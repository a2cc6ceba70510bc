package bugreport

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/nordlys/bugsight/pkg/models"
)

// ErrNoMainSection is the one structural failure of unpacking: the
// archive carried no main bugreport text at all.
var ErrNoMainSection = errors.New("no main bugreport text section found")

// maxFileSize bounds any single extracted file. Bugreport texts run to
// tens of megabytes; anything past this is hostile or corrupt input.
const maxFileSize = 256 << 20

// Bundle is everything extracted from one bugreport.zip.
type Bundle struct {
	MainText string
	Sections []Section

	// ANRTraces and Tombstones map archive file name to raw content.
	ANRTraces  map[string]string
	Tombstones map[string]string

	Props    map[string]string
	Metadata models.DeviceMetadata
}

// Unpack reads a bugreport.zip and extracts the text sections, ANR trace
// files, tombstone files and device metadata.
func Unpack(r io.ReaderAt, size int64) (*Bundle, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening bugreport zip: %w", err)
	}

	b := &Bundle{
		ANRTraces:  make(map[string]string),
		Tombstones: make(map[string]string),
	}

	for _, f := range zr.File {
		name := f.Name
		base := path.Base(name)

		switch {
		case isMainText(name):
			content, err := readEntry(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			// Some archives carry more than one dump; keep the largest.
			if len(content) > len(b.MainText) {
				b.MainText = content
			}

		case strings.Contains(name, "FS/data/anr/") && !f.FileInfo().IsDir():
			if content, err := readEntry(f); err == nil {
				b.ANRTraces[base] = content
			}

		case strings.Contains(name, "FS/data/tombstones/") && !f.FileInfo().IsDir():
			if content, err := readEntry(f); err == nil {
				b.Tombstones[base] = content
			}
		}
	}

	if b.MainText == "" {
		return nil, ErrNoMainSection
	}

	b.Sections = SplitSections(b.MainText)
	if props := b.Section("SYSTEM PROPERTIES"); props != nil {
		b.Props = ParseProps(props.Content)
	} else {
		b.Props = map[string]string{}
	}
	b.Metadata = extractMetadata(b.MainText, b.Props)

	return b, nil
}

// Section returns the first section whose name contains the given
// (upper-case) fragment, or nil.
func (b *Bundle) Section(nameFragment string) *Section {
	for i := range b.Sections {
		if strings.Contains(b.Sections[i].Name, nameFragment) {
			return &b.Sections[i]
		}
	}
	return nil
}

// SectionByCommand returns the first section whose capture command
// contains the fragment (e.g. "logcat", "dmesg", "lshal"), or nil.
func (b *Bundle) SectionByCommand(commandFragment string) *Section {
	for i := range b.Sections {
		if strings.Contains(b.Sections[i].Command, commandFragment) {
			return &b.Sections[i]
		}
	}
	return nil
}

func isMainText(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, "bugreport") && strings.HasSuffix(base, ".txt") && !strings.Contains(name, "/FS/")
}

func readEntry(f *zip.File) (string, error) {
	if f.UncompressedSize64 > maxFileSize {
		return "", fmt.Errorf("entry %s exceeds size limit", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxFileSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
