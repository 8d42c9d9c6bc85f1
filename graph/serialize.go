package graph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
)

const (
	DatasetFileMagic   uint32 = 0x52474e56 // "RGNV"
	DatasetFileVersion uint32 = 1
)

// ErrBadDatasetFile is returned for files that are not dataset files or use an unknown version.
var ErrBadDatasetFile = errors.New("bad dataset file")

// FileHeader starts every dataset file.
type FileHeader struct {
	Magic   uint32
	Version uint32
}

var useGzip = true

// UseGzip toggles compression for Save. Load detects compressed files itself.
func UseGzip(use bool) {
	useGzip = use
}

// Encode writes ds to w in the dataset file layout, without compression.
func Encode(w io.Writer, ds *Dataset) error {
	header := FileHeader{Magic: DatasetFileMagic, Version: DatasetFileVersion}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ds.Version); err != nil {
		return fmt.Errorf("failed to write dataset version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ds.Kind); err != nil {
		return fmt.Errorf("failed to write kind: %w", err)
	}

	sections := []struct {
		name string
		n    int
		data any
	}{
		{"regions", len(ds.Regions), ds.Regions},
		{"vertices", len(ds.Vertices), ds.Vertices},
		{"edges", len(ds.Edges), ds.Edges},
		{"triangles", len(ds.Triangles), ds.Triangles},
		{"internal links", len(ds.InternalLinks), ds.InternalLinks},
		{"external links", len(ds.ExternalLinks), ds.ExternalLinks},
	}
	for _, s := range sections {
		if err := binary.Write(w, binary.LittleEndian, uint32(s.n)); err != nil {
			return fmt.Errorf("failed to write %s count: %w", s.name, err)
		}
		if s.n == 0 {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, s.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.name, err)
		}
	}
	return nil
}

// Decode reads a dataset written by Encode and validates it.
func Decode(r io.Reader) (*Dataset, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header.Magic != DatasetFileMagic {
		return nil, fmt.Errorf("%w: magic number mismatch", ErrBadDatasetFile)
	}
	if header.Version != DatasetFileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", ErrBadDatasetFile, header.Version)
	}

	ds := &Dataset{}
	if err := binary.Read(r, binary.LittleEndian, &ds.Version); err != nil {
		return nil, fmt.Errorf("failed to read dataset version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ds.Kind); err != nil {
		return nil, fmt.Errorf("failed to read kind: %w", err)
	}

	var err error
	if ds.Regions, err = readSection[Region](r, "regions"); err != nil {
		return nil, err
	}
	if ds.Vertices, err = readSection[math32.Vector3](r, "vertices"); err != nil {
		return nil, err
	}
	if ds.Edges, err = readSection[[2]int32](r, "edges"); err != nil {
		return nil, err
	}
	if ds.Triangles, err = readSection[[3]int32](r, "triangles"); err != nil {
		return nil, err
	}
	if ds.InternalLinks, err = readSection[InternalLink](r, "internal links"); err != nil {
		return nil, err
	}
	if ds.ExternalLinks, err = readSection[ExternalLink](r, "external links"); err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// upper bound on a section length, guards allocations against corrupt counts
const maxSectionLen = 1 << 24

func readSection[T any](r io.Reader, name string) ([]T, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("failed to read %s count: %w", name, err)
	}
	if n == 0 {
		return nil, nil
	}
	if n > maxSectionLen {
		return nil, fmt.Errorf("%w: %s count %d too large", ErrBadDatasetFile, name, n)
	}
	out := make([]T, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return out, nil
}

// Save validates ds and writes it to filename.
func Save(ds *Dataset, filename string) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := Encode(buf, ds); err != nil {
		return err
	}
	content := buf.Bytes()
	if useGzip {
		var err error
		if content, err = Compress(content); err != nil {
			return fmt.Errorf("failed to compress: %w", err)
		}
	}

	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Load reads a dataset file.
func Load(filename string) (*Dataset, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if isGzip(content) {
		if content, err = Decompress(content); err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", filename, err)
		}
	}
	ds, err := Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	return ds, nil
}

func isGzip(content []byte) bool {
	return len(content) >= 2 && content[0] == 0x1f && content[1] == 0x8b
}

// Compress gzips content.
func Compress(content []byte) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	zw := gzip.NewWriter(buf)
	if _, err := zw.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maxDecompressedLen bounds the output of Decompress.
const maxDecompressedLen = 1 << 30

// Decompress gunzips content.
func Decompress(content []byte) ([]byte, error) {
	return decompress(content, maxDecompressedLen)
}

func decompress(content []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed size exceeds %d bytes", ErrBadDatasetFile, limit)
	}
	return out, nil
}

// FileInfo describes a dataset file.
type FileInfo struct {
	Filename      string        `json:"filename"`
	FileSize      int64         `json:"file_size"`
	Version       uint32        `json:"version"`
	Kind          string        `json:"kind"`
	Bounds        geometry.AABB `json:"bounds"`
	RegionCount   int           `json:"region_count"`
	InternalLinks int           `json:"internal_links"`
	ExternalLinks int           `json:"external_links"`
	DataSize      int           `json:"data_size"`
	ModTime       time.Time     `json:"mod_time"`
}

// GetFileInfo loads a dataset file and summarizes it.
func GetFileInfo(filename string) (*FileInfo, error) {
	stat, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	ds, err := Load(filename)
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Filename:      filename,
		FileSize:      stat.Size(),
		Version:       ds.Version,
		Kind:          ds.Kind.String(),
		Bounds:        ds.LocalBounds(),
		RegionCount:   len(ds.Regions),
		InternalLinks: len(ds.InternalLinks),
		ExternalLinks: len(ds.ExternalLinks),
		DataSize:      ds.GetDataSize(),
		ModTime:       stat.ModTime(),
	}, nil
}
