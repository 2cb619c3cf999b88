package services

import (
	"archive/zip"
	"errors"
	"io"
	"path"
	"strings"

	"mangashelf-backend/internal/apperrors"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type ArchiveLimits struct {
	MaxEntries      int
	MaxArchiveBytes int64
	MaxEntryBytes   int64
}

func isImageEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(f.Name))]
}

// checkEntryName rejects names that would resolve outside the archive root.
func checkEntryName(name string) error {
	normalized := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(normalized, "/") || (len(normalized) >= 2 && normalized[1] == ':') {
		return apperrors.Validation("archive entry %q has an absolute path", name)
	}
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return apperrors.Validation("archive entry %q escapes the archive root", name)
		}
	}
	return nil
}

func (l ArchiveLimits) check(r *zip.Reader) error {
	if l.MaxEntries > 0 && len(r.File) > l.MaxEntries {
		return apperrors.Validation("archive has %d entries; the limit is %d", len(r.File), l.MaxEntries)
	}
	for _, f := range r.File {
		if err := checkEntryName(f.Name); err != nil {
			return err
		}
		if isImageEntry(f) && l.MaxEntryBytes > 0 && f.UncompressedSize64 > uint64(l.MaxEntryBytes) {
			return apperrors.Validation("archive entry %q is larger than %d bytes", f.Name, l.MaxEntryBytes)
		}
	}
	return nil
}

// trackingWriter remembers write failures so a failed copy can be blamed on
// the destination or on the archive.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// copyEntry copies at most limit bytes of f to dst. Sizes are checked
// against the bytes actually inflated, not the header.
func copyEntry(dst io.Writer, f *zip.File, limit int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, apperrors.Validation("cannot read archive entry %q: %v", f.Name, err)
	}
	defer rc.Close()

	tw := &trackingWriter{w: dst}
	src := io.Reader(rc)
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}

	n, err := io.Copy(tw, src)
	switch {
	case tw.err != nil:
		return n, apperrors.IO(tw.err, "failed to stage archive entry %q", f.Name)
	case err != nil:
		return n, apperrors.Validation("archive entry %q is corrupt: %v", f.Name, err)
	case limit > 0 && n > limit:
		return n, apperrors.Validation("archive entry %q is larger than %d bytes", f.Name, limit)
	}
	return n, nil
}

func openArchive(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, apperrors.Validation("archive contains an entry with an unsafe path")
	}
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, apperrors.Validation("not a valid zip archive: %v", err)
		}
		return nil, apperrors.IO(err, "failed to read archive")
	}
	return zr, nil
}
