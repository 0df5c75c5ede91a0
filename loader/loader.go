package loader

import (
	"bufio"
	"consultant/types"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLoad marks a document that exists but could not be read.
	ErrLoad = errors.New("load error")
	// ErrUnsupported marks a file whose format the loader does not handle.
	ErrUnsupported = errors.New("unsupported document format")
)

type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	PDFCropTop    float64
	PDFCropBottom float64
}

type Loader struct {
	cfg      Config
	logger   *slog.Logger
	splitter *Splitter
	pdf      *PDFExtractor
}

func New(cfg Config, logger *slog.Logger) *Loader {
	return &Loader{
		cfg:      cfg,
		logger:   logger,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		pdf:      NewPDFExtractor(cfg.PDFCropTop, cfg.PDFCropBottom),
	}
}

// Load reads every supported file under paths (files or directories) and
// returns the documents split into chunks, in a stable order. Files named
// explicitly must be supported; unsupported files inside directories are
// skipped.
func (l *Loader) Load(ctx context.Context, paths []string) ([]types.Document, error) {
	files, err := l.collect(paths)
	if err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.loadFile(path, i)
		if err != nil {
			return nil, err
		}
		if len(doc.Chunks) == 0 {
			l.logger.Warn("document is empty, nothing to index", "path", path)
		}
		l.logger.Info("document loaded", "path", path, "title", doc.Title, "chunks", len(doc.Chunks))
		docs = append(docs, doc)
	}
	return docs, nil
}

// FromText builds a chunked document from in-memory text.
func (l *Loader) FromText(title, text string, order int) types.Document {
	now := time.Now()
	doc := types.Document{
		ID:         generateDocumentID("text:" + title),
		Title:      title,
		Source:     types.SourceText,
		SourcePath: title,
		Content:    text,
		Order:      order,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	doc.Chunks = l.splitter.Split(doc)
	return doc
}

func (l *Loader) collect(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		}
		if seen[abs] {
			l.logger.Debug("skipping file listed twice", "path", path)
			return nil
		}
		seen[abs] = true
		files = append(files, path)
		return nil
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, root, err)
		}
		if !info.IsDir() {
			if sourceType(root) == "" {
				return nil, fmt.Errorf("%w: %s", ErrUnsupported, root)
			}
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}

		var found []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if sourceType(path) == "" {
				l.logger.Debug("skipping unsupported file", "path", path)
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walk %s: %v", ErrLoad, root, err)
		}
		sort.Strings(found)
		for _, path := range found {
			if err := add(path); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

func (l *Loader) loadFile(path string, order int) (types.Document, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	st := sourceType(path)
	var text string
	switch st {
	case types.SourcePDF:
		text, err = l.pdf.Extract(path)
	case types.SourceText, types.SourceMarkdown:
		text, err = readText(path)
	default:
		return types.Document{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err != nil {
		return types.Document{}, err
	}

	doc := types.Document{
		ID:         generateDocumentID(filepath.Clean(path)),
		Title:      generateTitle(path, text),
		Source:     st,
		SourcePath: path,
		Content:    text,
		Order:      order,
		CreatedAt:  fileInfo.ModTime(),
		UpdatedAt:  fileInfo.ModTime(),
		Version:    1,
	}
	doc.Chunks = l.splitter.Split(doc)
	return doc, nil
}

func sourceType(path string) types.SourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return types.SourcePDF
	case ".txt":
		return types.SourceText
	case ".md", ".markdown":
		return types.SourceMarkdown
	default:
		return ""
	}
}

// generateTitle prefers a leading markdown heading and falls back to a
// prettified file name.
func generateTitle(filePath, text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		break
	}

	fileName := filepath.Base(filePath)
	fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	fileName = strings.ReplaceAll(fileName, "_", " ")
	fileName = strings.ReplaceAll(fileName, "-", " ")
	return fileName
}

func generateDocumentID(key string) uuid.UUID {
	hash := md5.Sum([]byte(key))
	id, _ := uuid.FromBytes(hash[:])
	return id
}
