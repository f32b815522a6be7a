package docdrift

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSourceRoot is returned when the source root is missing or is
	// not a directory.
	ErrInvalidSourceRoot = errors.New("invalid source root")

	// ErrDuplicateModule is returned when two files map to the same dotted
	// module path (e.g. pkg.py next to pkg/__init__.py).
	ErrDuplicateModule = errors.New("duplicate module path")

	// ErrFileTooLarge is recorded for source files above the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ConfigurationError is a fatal problem with the run's inputs. It is raised
// before any finding is produced.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("docdrift: configuration: %v", e.Err)
	}
	return fmt.Sprintf("docdrift: configuration: %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DocumentError reports a documentation file that could not be read.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("docdrift: read document %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// BlockParseError describes a code block whose text is not a syntactically
// complete program. Imports from well-formed statements are still returned
// alongside it.
type BlockParseError struct {
	Line    int // 1-based, relative to the block
	Message string
}

func (e *BlockParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
