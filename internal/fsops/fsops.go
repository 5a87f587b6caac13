package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrOutputExists is returned when a document would overwrite an existing file.
var ErrOutputExists = errors.New("output file already exists")

// FS is the filesystem drafted documents are written to.
type FS interface {
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	MkdirAll(path string, perm os.FileMode) error
}

// Afero adapts any afero.Fs to FS.
type Afero struct{ Fs afero.Fs }

func NewOS() Afero { return Afero{Fs: afero.NewOsFs()} }

func (a Afero) WriteFile(name string, b []byte, p os.FileMode) error {
	return afero.WriteFile(a.Fs, filepath.Clean(name), b, p)
}
func (a Afero) Stat(name string) (fs.FileInfo, error) { return a.Fs.Stat(filepath.Clean(name)) }
func (a Afero) Rename(from, to string) error          { return a.Fs.Rename(from, to) }
func (a Afero) Remove(name string) error              { return a.Fs.Remove(filepath.Clean(name)) }
func (a Afero) MkdirAll(path string, p os.FileMode) error {
	return a.Fs.MkdirAll(filepath.Clean(path), p)
}

// Ops is the high-level façade used by commands.
type Ops struct{ FS FS }

func NewOps(fs FS) Ops { return Ops{FS: fs} }

func (o Ops) EnsureDir(path string) error { return o.FS.MkdirAll(filepath.Dir(path), 0o755) }
func (o Ops) FileExists(p string) bool    { _, err := o.FS.Stat(p); return err == nil }

// WriteDocument writes content to path through a sibling temporary file and a
// rename, so readers never observe a partial document. An existing file is
// only replaced when overwrite is set.
func (o Ops) WriteDocument(path string, content []byte, overwrite bool) error {
	cleaned := filepath.Clean(path)
	if !overwrite && o.FileExists(cleaned) {
		return fmt.Errorf("%w: %s", ErrOutputExists, cleaned)
	}
	if err := o.EnsureDir(cleaned); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	temporary := cleaned + ".partial"
	if err := o.FS.WriteFile(temporary, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", temporary, err)
	}
	if err := o.FS.Rename(temporary, cleaned); err != nil {
		_ = o.FS.Remove(temporary)
		return fmt.Errorf("move %s into place: %w", cleaned, err)
	}
	return nil
}
