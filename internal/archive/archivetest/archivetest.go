// Package archivetest builds small tar archives for tests.
package archivetest

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// Entry describes a single archive member.
type Entry struct {
	// Name is the slash-separated path inside the archive; a trailing slash marks a directory.
	Name string
	// Body is the file content.
	Body string
	// Mode defaults to 0o644 for files and 0o755 for directories.
	Mode int64
	// Linkname turns the entry into a symlink.
	Linkname string
	// Hardlink turns the entry into a hard link to another archive member.
	Hardlink string
}

// Write creates an archive at path. The compression follows the suffix like archive.Unpack does.
// Parent directories of files are added automatically.
func Write(t *testing.T, filename string, entries ...Entry) {
	t.Helper()

	WriteExact(t, filename, withParents(entries)...)
}

// WriteExact is Write without the implicit parent directories.
func WriteExact(t *testing.T, filename string, entries ...Entry) {
	t.Helper()

	file, err := os.Create(filename)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, file.Close())
	}()

	compressed, finish := compressor(t, filename, file)
	writer := tar.NewWriter(compressed)

	for _, entry := range entries {
		require.NoError(t, writeEntry(writer, entry))
	}

	require.NoError(t, writer.Close())
	require.NoError(t, finish())
}

// Payload returns the entries of a minimal server payload rooted at factorio/.
func Payload() []Entry {
	return []Entry{
		{Name: "factorio/bin/x64/factorio", Body: "#!/bin/sh\necho factorio \"$@\"\n", Mode: 0o755},
		{Name: "factorio/data/base/info.json", Body: `{"name":"base"}`},
		{Name: "factorio/config-path.cfg", Body: "config-path=__PATH__executable__/../../config\n"},
	}
}

func compressor(t *testing.T, filename string, w io.Writer) (io.Writer, func() error) {
	t.Helper()

	switch {
	case strings.HasSuffix(filename, ".tar.xz"), strings.HasSuffix(filename, ".txz"):
		xzWriter, err := xz.NewWriter(w)
		require.NoError(t, err)

		return xzWriter, xzWriter.Close
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		gzWriter := gzip.NewWriter(w)

		return gzWriter, gzWriter.Close
	case strings.HasSuffix(filename, ".tar.zst"):
		zstdWriter, err := zstd.NewWriter(w)
		require.NoError(t, err)

		return zstdWriter, zstdWriter.Close
	default:
		return w, func() error { return nil }
	}
}

func withParents(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	result := make([]Entry, 0, len(entries)*2)

	for _, entry := range entries {
		seen[entry.Name] = struct{}{}
	}

	var parents []string

	for _, entry := range entries {
		for dir := path.Dir(strings.TrimSuffix(entry.Name, "/")); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := seen[dir+"/"]; ok {
				continue
			}

			seen[dir+"/"] = struct{}{}
			parents = append(parents, dir+"/")
		}
	}

	sort.Strings(parents)

	for _, dir := range parents {
		result = append(result, Entry{Name: dir})
	}

	return append(result, entries...)
}

func writeEntry(writer *tar.Writer, entry Entry) error {
	header := &tar.Header{
		Name: entry.Name,
		Mode: entry.Mode,
	}

	switch {
	case entry.Linkname != "":
		header.Typeflag = tar.TypeSymlink
		header.Linkname = entry.Linkname
	case entry.Hardlink != "":
		header.Typeflag = tar.TypeLink
		header.Linkname = entry.Hardlink
	case strings.HasSuffix(entry.Name, "/"):
		header.Typeflag = tar.TypeDir
		if header.Mode == 0 {
			header.Mode = 0o755
		}
	default:
		header.Typeflag = tar.TypeReg
		header.Size = int64(len(entry.Body))
		if header.Mode == 0 {
			header.Mode = 0o644
		}
	}

	if err := writer.WriteHeader(header); err != nil {
		return err
	}

	if header.Typeflag != tar.TypeReg {
		return nil
	}

	_, err := io.WriteString(writer, entry.Body)

	return err
}
