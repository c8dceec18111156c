package archive

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/factorio-up/internal/apperr"
)

// dirMode is used for parent directories that the archive does not list explicitly.
const dirMode os.FileMode = 0o755

// decoder wraps a compressed stream; close releases decoder resources.
type decoder struct {
	io.Reader

	close func()
}

// Unpack extracts the tar archive at archivePath into dest.
// The compression is chosen by suffix: .tar.xz/.txz, .tar.gz/.tgz, .tar.zst or plain .tar.
// dest must already exist. On error, entries written so far are left in place.
func Unpack(ctx context.Context, archivePath, dest string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	stream, err := newDecoder(archivePath, file)
	if err != nil {
		return err
	}

	defer stream.close()

	return untar(ctx, tar.NewReader(stream), dest)
}

func compressionOf(name string) (string, bool) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "xz", true
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "gzip", true
	case strings.HasSuffix(lower, ".tar.zst"):
		return "zstd", true
	case strings.HasSuffix(lower, ".tar"):
		return "none", true
	default:
		return "", false
	}
}

func newDecoder(name string, r io.Reader) (*decoder, error) {
	compression, ok := compressionOf(name)
	if !ok {
		return nil, apperr.InvalidDataf("unsupported archive format: %s", filepath.Base(name))
	}

	switch compression {
	case "xz":
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, apperr.InvalidDataf("open xz stream %s: %v", name, err)
		}

		return &decoder{Reader: xzReader, close: func() {}}, nil
	case "gzip":
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, apperr.InvalidDataf("open gzip stream %s: %v", name, err)
		}

		return &decoder{Reader: gzReader, close: func() { _ = gzReader.Close() }}, nil
	case "zstd":
		zstdReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, apperr.InvalidDataf("open zstd stream %s: %v", name, err)
		}

		return &decoder{Reader: zstdReader, close: zstdReader.Close}, nil
	default:
		return &decoder{Reader: r, close: func() {}}, nil
	}
}

func untar(ctx context.Context, reader *tar.Reader, dest string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return apperr.InvalidDataf("read archive entry: %v", err)
		}

		target, err := entryPath(dest, header.Name)
		if err != nil {
			return err
		}

		if err = checkLinks(dest, header, target); err != nil {
			return err
		}

		if err = writeEntry(reader, header, dest, target); err != nil {
			return err
		}
	}
}

// entryPath joins name onto dest and rejects names that escape it.
func entryPath(dest, name string) (string, error) {
	target := filepath.Join(dest, name)

	relative, err := filepath.Rel(dest, target)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", apperr.InvalidDataf("archive entry %q escapes the destination", name)
	}

	return target, nil
}

// checkLinks rejects entries that would be written through a symlink an
// earlier entry created. Files and hard links may not replace a symlink either.
func checkLinks(dest string, header *tar.Header, target string) error {
	switch header.Typeflag {
	case tar.TypeReg:
		return noSymlinks(dest, target, header.Name)
	case tar.TypeLink:
		if err := noSymlinks(dest, target, header.Name); err != nil {
			return err
		}

		source, err := entryPath(dest, header.Linkname)
		if err != nil {
			return err
		}

		return noSymlinks(dest, source, header.Name)
	case tar.TypeDir, tar.TypeSymlink:
		return noSymlinks(dest, filepath.Dir(target), header.Name)
	default:
		return nil
	}
}

// noSymlinks walks path from dest downwards and fails on the first existing symlink.
func noSymlinks(dest, path, name string) error {
	relative, err := filepath.Rel(dest, path)
	if err != nil {
		return apperr.InvalidDataf("archive entry %q escapes the destination", name)
	}

	if relative == "." {
		return nil
	}

	current := dest

	for _, part := range strings.Split(relative, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return apperr.InvalidDataf("archive entry %q passes through symlink %s", name, current)
		}
	}

	return nil
}

//nolint:cyclop // One branch per tar entry type.
func writeEntry(reader io.Reader, header *tar.Header, dest, target string) error {
	mode := header.FileInfo().Mode().Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return err
		}

		return writeFile(reader, target, mode)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return err
		}

		return os.Symlink(header.Linkname, target)
	case tar.TypeLink:
		source, err := entryPath(dest, header.Linkname)
		if err != nil {
			return err
		}

		if err = os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return err
		}

		return os.Link(source, target)
	default:
		// Devices, fifos and extended headers have no place in a server payload.
		return nil
	}
}

func writeFile(reader io.Reader, target string, mode os.FileMode) error {
	output, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, reader); err != nil {
		_ = output.Close()
		return apperr.InvalidDataf("unpack %s: %v", target, err)
	}

	return output.Close()
}
