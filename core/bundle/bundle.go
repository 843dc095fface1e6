package bundle

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/errors"
)

// Compression specifies the archive compression algorithm.
type Compression string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ Compression = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip Compression = "gzip"
)

// Anchor is one bundled anchor: the selector plus the fingerprint of the
// document snapshot it was created against.
type Anchor struct {
	Selector    *anchor.MultiSelector
	Fingerprint string
}

// PackOptions configures bundle packing.
type PackOptions struct {
	// Compression selects the algorithm. Defaults to XZ.
	Compression Compression
}

// DefaultPackOptions returns the default packing options (XZ compression).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{
		Compression: CompressionXZ,
	}
}

// Pack writes the anchors into a bundle archive at path using the default
// options and returns the manifest it wrote.
func Pack(path string, anchors []Anchor) (*Manifest, error) {
	return PackWithOptions(path, anchors, DefaultPackOptions())
}

// PackWithOptions writes the anchors into a bundle archive at path.
func PackWithOptions(path string, anchors []Anchor, opts *PackOptions) (*Manifest, error) {
	if opts == nil {
		opts = DefaultPackOptions()
	}

	manifest := NewManifest()
	claimed := make(map[string]string, len(anchors))
	for i, a := range anchors {
		if a.Selector == nil {
			return nil, errors.NewValidation(fmt.Sprintf("anchors[%d]", i), "selector is nil")
		}
		id := a.Selector.ID
		if id == "" {
			return nil, errors.NewValidation(fmt.Sprintf("anchors[%d].id", i), "is empty")
		}

		// IDs map to archive paths through sanitization, so two
		// distinct IDs can still claim the same entry.
		entry := Entry{ID: id, Fingerprint: a.Fingerprint, Path: entryPath(id)}
		if prev, taken := claimed[entry.Path]; taken {
			return nil, errors.NewValidation(fmt.Sprintf("anchors[%d].id", i),
				fmt.Sprintf("%s collides with %s", id, prev))
		}
		claimed[entry.Path] = id
		manifest.Anchors = append(manifest.Anchors, entry)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle: %w", err)
	}
	defer file.Close()

	var compressor io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressor, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		fallthrough
	default:
		compressor, err = xz.NewWriter(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
	}

	tw := tar.NewWriter(compressor)

	// Manifest first, so readers can list a bundle without walking it.
	manifestData, err := manifest.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tw, manifestName, manifestData); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	for i, a := range anchors {
		data, err := json.MarshalIndent(a.Selector, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize anchor %s: %w", a.Selector.ID, err)
		}
		if err := writeToTar(tw, manifest.Anchors[i].Path, data); err != nil {
			return nil, fmt.Errorf("failed to write anchor %s: %w", a.Selector.ID, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}
	return manifest, nil
}

// DetectCompression detects the compression format of a bundle from its
// magic bytes.
func DetectCompression(path string) (Compression, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", path, err)
	}
	if n < 2 {
		return "", errors.NewValidation("bundle", "file too small to detect compression")
	}

	// gzip: 1f 8b
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	// xz: fd 37 7a 58 5a 00
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack reads the bundle at path and returns its manifest and anchors,
// in manifest order. Compression is detected from the file's magic bytes.
func Unpack(path string) (*Manifest, []Anchor, error) {
	compression, err := DetectCompression(path)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewIO("open", path, err)
	}
	defer file.Close()

	var reader io.Reader
	switch compression {
	case CompressionGzip:
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	case CompressionXZ:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)

	var manifest *Manifest
	selectors := make(map[string]*anchor.MultiSelector)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		cleanPath := filepath.Clean(header.Name)
		if strings.HasPrefix(cleanPath, "..") {
			continue
		}

		if cleanPath == manifestName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
			}
			manifest, err = ParseManifest(data)
			if err != nil {
				return nil, nil, errors.NewParse("bundle manifest", path, err.Error())
			}
			continue
		}

		// Entries outside anchors/ are not ours to interpret.
		if !strings.HasPrefix(cleanPath, "anchors/") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		sel := &anchor.MultiSelector{}
		if err := json.Unmarshal(data, sel); err != nil {
			return nil, nil, errors.NewParse("bundle anchor", header.Name, err.Error())
		}
		selectors[cleanPath] = sel
	}

	if manifest == nil {
		return nil, nil, errors.NewParse("bundle", path, "archive does not contain manifest.json")
	}

	anchors := make([]Anchor, 0, len(manifest.Anchors))
	for _, entry := range manifest.Anchors {
		sel, ok := selectors[filepath.Clean(entry.Path)]
		if !ok {
			return nil, nil, errors.NewParse("bundle", path,
				fmt.Sprintf("manifest lists anchor %s but the archive has no %s", entry.ID, entry.Path))
		}
		if sel.ID != entry.ID {
			return nil, nil, errors.NewParse("bundle", path,
				fmt.Sprintf("%s holds anchor %s, manifest says %s", entry.Path, sel.ID, entry.ID))
		}
		anchors = append(anchors, Anchor{Selector: sel, Fingerprint: entry.Fingerprint})
	}

	return manifest, anchors, nil
}

// ReadManifest returns the bundle's manifest without reading the anchors.
func ReadManifest(path string) (*Manifest, error) {
	compression, err := DetectCompression(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer file.Close()

	var reader io.Reader
	switch compression {
	case CompressionGzip:
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	case CompressionXZ:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if filepath.Clean(header.Name) != manifestName {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		manifest, err := ParseManifest(data)
		if err != nil {
			return nil, errors.NewParse("bundle manifest", path, err.Error())
		}
		return manifest, nil
	}

	return nil, errors.NewParse("bundle", path, "archive does not contain manifest.json")
}

// entryPath derives the archive path for an anchor's selector JSON.
func entryPath(id string) string {
	var b strings.Builder
	for _, c := range id {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' || c == ':' {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	return "anchors/" + b.String() + ".json"
}

// writeToTar writes one file entry to the tar archive.
func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
