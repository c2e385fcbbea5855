package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the text encoding source files are decoded with.
const DefaultEncoding = "utf-8"

// maxLineSize bounds a single physical line.
const maxLineSize = 4 * 1024 * 1024

// ErrDecode marks a file whose bytes are invalid for the configured encoding.
var ErrDecode = errors.New("decode error")

// SourceParser scans source files line by line for human-readable literals.
type SourceParser struct {
	suffix       string
	encoding     encoding.Encoding
	encodingName string
}

// NewSourceParser creates a parser for files ending in suffix, decoded with
// the named IANA encoding. An empty name selects DefaultEncoding.
func NewSourceParser(suffix, encodingName string) (*SourceParser, error) {
	if suffix == "" {
		return nil, errors.New("file suffix is required")
	}
	enc, name, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &SourceParser{
		suffix:       suffix,
		encoding:     enc,
		encodingName: name,
	}, nil
}

// LookupEncoding resolves an IANA encoding name and returns the encoding with
// its canonical name.
func LookupEncoding(name string) (encoding.Encoding, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf8") {
		name = DefaultEncoding
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, "", fmt.Errorf("unsupported encoding %q", name)
	}

	return enc, canonicalName(enc, name), nil
}

// canonicalName prefers the MIME name ("ISO-8859-1") over the IANA one
// ("ISO_8859-1:1987").
func canonicalName(enc encoding.Encoding, fallback string) string {
	for _, idx := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if n, err := idx.Name(enc); err == nil && n != "" {
			return n
		}
	}
	return fallback
}

// Suffix returns the file name suffix this parser accepts.
func (p *SourceParser) Suffix() string { return p.suffix }

// Encoding returns the canonical name of the decoding in use.
func (p *SourceParser) Encoding() string { return p.encodingName }

func (p *SourceParser) CanParse(path string) bool {
	return strings.HasSuffix(filepath.Base(path), p.suffix)
}

func (p *SourceParser) Parse(filePath string) (*ParseResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer file.Close()

	result := &ParseResult{FilePath: filePath}

	scanner := bufio.NewScanner(p.decoder(file))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		for _, text := range ExtractLine(scanner.Text()) {
			result.Texts = append(result.Texts, ExtractedText{
				Text: text,
				File: filePath,
				Line: lineNum,
			})
		}
	}
	result.Lines = lineNum

	if err := scanner.Err(); err != nil {
		if errors.Is(err, encoding.ErrInvalidUTF8) {
			return nil, fmt.Errorf("%w: '%s' codec: %w", ErrDecode, p.encodingName, err)
		}
		return nil, fmt.Errorf("scan source file: %w", err)
	}

	return result, nil
}

// scanLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a lone
// "\r". Terminators are not part of the token.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		// A trailing \r may be the first half of \r\n.
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// decoder wraps r so it yields UTF-8. UTF-8 input is validated rather than
// repaired, so invalid bytes surface as encoding.ErrInvalidUTF8.
func (p *SourceParser) decoder(r io.Reader) io.Reader {
	if p.encoding == unicode.UTF8 {
		return transform.NewReader(r, encoding.UTF8Validator)
	}
	return p.encoding.NewDecoder().Reader(r)
}
