// Package pipeline implements the ingestion core: it drives corpus
// records through the lexer, keeps term and math positions synchronized,
// and coordinates the backing stores.
//
// The backing structures (term index, math index, offset store, blob
// stores) are collaborators behind interfaces; real implementations
// live in internal/store.
package pipeline

import "github.com/Aman-CERP/mathdex/internal/lex"

// DocID identifies a committed document. IDs are strictly positive and
// assigned monotonically by the term index at commit time: the Nth
// committed document gets ID N.
type DocID uint32

// Position is the zero-based ordinal of a token within one document.
// The counter is shared across text terms and math expressions so that
// cross-modal scoring and snippet reconstruction line up.
type Position uint32

// SegmentFunc segments lowercased slice text into words, in order.
type SegmentFunc func(text string) []lex.Word

// LexFunc splits document text into typed slices, in document order.
// It is supplied by the caller of the ingestor; the pipeline owns only
// the routing contract.
type LexFunc func(text string) ([]lex.Slice, error)

// TermIndex is the inverted-index collaborator.
type TermIndex interface {
	// BeginDocument prepares indexing of a new document. The index
	// allocates the next DocID internally but does not expose it yet.
	BeginDocument() error

	// AddToken adds one token to the open document.
	AddToken(text string) error

	// EndDocument commits the open document and returns its DocID.
	EndDocument() (DocID, error)

	// AbortDocument discards the open document without committing it
	// or consuming a DocID. A no-op when no document is open.
	AbortDocument()

	// PollMaintenance reports whether the index performed internal
	// maintenance as a side effect of the most recent commit.
	PollMaintenance() bool
}

// MathIndex is the structural math-expression index collaborator.
type MathIndex interface {
	AddExpression(doc DocID, pos Position, subpaths []string) error
}

// TeXParser turns TeX source into structural subpaths.
type TeXParser interface {
	Parse(src string) ([]string, error)
}

// OffsetStore persists (doc, pos) -> (byte offset, byte length) records.
// Every routed token gets one, including math tokens whose parse failed;
// this is what lets snippet generation map positions back to source
// bytes regardless of deep-indexing outcome.
type OffsetStore interface {
	Put(doc DocID, pos Position, offset, nBytes uint32) error
	Flush() error
}

// BlobStore persists byte payloads keyed by DocID. The pipeline uses
// two independently keyed instances, one for URLs and one for text.
type BlobStore interface {
	Write(doc DocID, data []byte) error
}

// Codec compresses blob payloads before storage.
type Codec interface {
	Compress(data []byte) ([]byte, error)
}
