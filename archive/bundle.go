package archive

import (
	"archive/tar"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/scriptorium/layout"
)

const (
	bundlePages    = "pages.bin"
	bundleIndex    = "index.bin"
	bundleManifest = "manifest.yaml"
)

// Manifest describes the contents of a bundle.
type Manifest struct {
	Version     int      `yaml:"version"`
	Name        string   `yaml:"name"`
	Pages       int      `yaml:"pages"`
	Entries     int      `yaml:"entries"`
	Books       []string `yaml:"books,omitempty"`
	PagesDigest string   `yaml:"pages_digest"`
	IndexDigest string   `yaml:"index_digest"`
}

// Bundle groups a pages container and an index container produced by the
// same layout.
type Bundle struct {
	Manifest Manifest
	Pages    []byte
	Index    []byte
}

// NewBundle serializes a layout result.
func NewBundle(name string, res *layout.Result) (*Bundle, error) {
	pages, err := SerializePages(res.Pages, res.Dims)
	if err != nil {
		return nil, err
	}
	index, err := SerializeIndex(res.Index)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		Manifest: Manifest{
			Version: version,
			Name:    name,
			Pages:   res.NumPages(),
			Entries: res.Index.Len(),
		},
		Pages: pages,
		Index: index,
	}
	if res.Index.Len() > 0 {
		b.Manifest.Books = res.Index.Books()
	}
	b.Manifest.PagesDigest = digestHex(pages)
	b.Manifest.IndexDigest = digestHex(index)
	return b, nil
}

// OpenPages opens the pages container of the bundle.
func (b *Bundle) OpenPages() (*Pages, error) { return OpenPages(b.Pages) }

// OpenIndex opens the index container of the bundle.
func (b *Bundle) OpenIndex() (*Indices, error) { return OpenIndex(b.Index) }

// WriteBundle writes b as an xz compressed tar stream.
func WriteBundle(w io.Writer, b *Bundle) error {
	manifest, err := yaml.Marshal(&b.Manifest)
	if err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("archive: xz writer: %w", err)
	}
	tw := tar.NewWriter(xw)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{bundleManifest, manifest},
		{bundlePages, b.Pages},
		{bundleIndex, b.Index},
	} {
		hdr := &tar.Header{
			Name:     f.name,
			Mode:     0o644,
			Size:     int64(len(f.data)),
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive: write %s: %w", f.name, err)
		}
		if _, err := tw.Write(f.data); err != nil {
			return fmt.Errorf("archive: write %s: %w", f.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return xw.Close()
}

// ReadBundle reads a bundle written by WriteBundle and checks both
// containers against their own trailers and the manifest digests.
func ReadBundle(r io.Reader) (*Bundle, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: xz reader: %w", err)
	}

	var (
		b        Bundle
		manifest []byte
	)
	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: read bundle: %w", err)
		}
		var dst *[]byte
		switch hdr.Name {
		case bundleManifest:
			dst = &manifest
		case bundlePages:
			dst = &b.Pages
		case bundleIndex:
			dst = &b.Index
		default:
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, fmt.Errorf("archive: read %s: %w", hdr.Name, err)
		}
		*dst = buf.Bytes()
	}

	switch {
	case manifest == nil:
		return nil, fmt.Errorf("%w: bundle has no %s", ErrFormat, bundleManifest)
	case b.Pages == nil:
		return nil, fmt.Errorf("%w: bundle has no %s", ErrFormat, bundlePages)
	case b.Index == nil:
		return nil, fmt.Errorf("%w: bundle has no %s", ErrFormat, bundleIndex)
	}
	if err := yaml.Unmarshal(manifest, &b.Manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrFormat, err)
	}
	if b.Manifest.Version != version {
		return nil, fmt.Errorf("%w: unsupported bundle version %d", ErrFormat, b.Manifest.Version)
	}

	pages, err := b.OpenPages()
	if err != nil {
		return nil, err
	}
	if err := pages.Verify(); err != nil {
		return nil, err
	}
	index, err := b.OpenIndex()
	if err != nil {
		return nil, err
	}
	if err := index.Verify(); err != nil {
		return nil, err
	}
	if digestHex(b.Pages) != b.Manifest.PagesDigest || digestHex(b.Index) != b.Manifest.IndexDigest {
		return nil, fmt.Errorf("%w: manifest digests do not match contents", ErrChecksum)
	}
	return &b, nil
}

func digestHex(data []byte) string {
	sum, err := Digest(data)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(sum)
}
