package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"metaledger/internal/document"
)

// FileConnector reads records from a local file.
type FileConnector struct {
	path     string
	format   string
	encoding encoding.Encoding
}

// NewFileConnector validates format and encoding up front.
func NewFileConnector(path, format, enc string) (*FileConnector, error) {
	switch format {
	case "csv", "json", "jsonl":
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
	decoder, err := lookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	return &FileConnector{path: path, format: format, encoding: decoder}, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch name {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported source encoding %q", name)
	}
}

func (c *FileConnector) Name() string {
	return filepath.Base(c.path)
}

// Records streams the file. Open failures are yielded once and end the feed.
func (c *FileConnector) Records(ctx context.Context) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		f, err := os.Open(c.path)
		if err != nil {
			yield(nil, fmt.Errorf("open source file: %w", err))
			return
		}
		defer f.Close()

		reader := transform.NewReader(f, c.encoding.NewDecoder())
		var next func(io.Reader, func(document.Document, error) bool)
		switch c.format {
		case "csv":
			next = readCSV
		case "json":
			next = readJSONArray
		default:
			next = readJSONLines
		}
		next(reader, func(doc document.Document, err error) bool {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)
				return false
			}
			return yield(doc, err)
		})
	}
}

func readCSV(r io.Reader, yield func(document.Document, error) bool) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return
	}
	if err != nil {
		yield(nil, fmt.Errorf("read csv header: %w", err))
		return
	}
	for row := 1; ; row++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if !yield(nil, &RecordError{Position: row, Err: err}) {
					return
				}
				continue
			}
			yield(nil, fmt.Errorf("read csv: %w", err))
			return
		}
		doc := make(document.Document, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(values) {
				doc[name] = values[i]
			} else {
				doc[name] = ""
			}
		}
		if !yield(doc, nil) {
			return
		}
	}
}

func readJSONArray(r io.Reader, yield func(document.Document, error) bool) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return
	}
	if err != nil {
		yield(nil, fmt.Errorf("read json: %w", err))
		return
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		yield(nil, fmt.Errorf("read json: expected array of records"))
		return
	}
	for pos := 1; dec.More(); pos++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			yield(nil, fmt.Errorf("read json record %d: %w", pos, err))
			return
		}
		doc, err := document.Decode(raw)
		if err != nil {
			if !yield(nil, &RecordError{Position: pos, Err: err}) {
				return
			}
			continue
		}
		if !yield(doc, nil) {
			return
		}
	}
}

func readJSONLines(r io.Reader, yield func(document.Document, error) bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		doc, err := document.Decode(text)
		if err != nil {
			if !yield(nil, &RecordError{Position: line, Err: err}) {
				return
			}
			continue
		}
		if !yield(doc, nil) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		yield(nil, fmt.Errorf("read jsonl: %w", err))
	}
}
