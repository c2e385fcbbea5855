package parser

// ExtractedText represents a human-readable string literal found in a source file.
type ExtractedText struct {
	// Text is the literal's content between the quotes, unmodified.
	Text string
	// File is the source file path as produced by the walker.
	File string
	// Line is the 1-based line number in the source file.
	Line int
}

// ParseResult holds parsing output for a single file.
type ParseResult struct {
	// FilePath is the path of the parsed file.
	FilePath string
	// Texts are the extracted literals, in line order.
	Texts []ExtractedText
	// Lines is the number of lines read.
	Lines int
}

// Parser is the interface for source file scanners.
type Parser interface {
	// CanParse returns true if this parser handles the given file path.
	CanParse(path string) bool
	// Parse extracts literals from a file. A non-nil error means the file
	// produced no usable result.
	Parse(filePath string) (*ParseResult, error)
}
