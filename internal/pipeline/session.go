package pipeline

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/lex"
)

// mathSentinelTerm is registered in the term index for every math slice,
// whether or not its TeX parses. It keeps term-index and math-index
// position numbering mutually consistent.
const mathSentinelTerm = "math_exp"

// defaultParseCacheSize bounds the TeX parse cache when the config
// leaves it unset.
const defaultParseCacheSize = 1024

type sessionState int

const (
	stateIdle sessionState = iota
	stateOpen
)

// SessionConfig contains the collaborators of a document session.
type SessionConfig struct {
	// Terms is the inverted term index.
	Terms TermIndex

	// Math is the structural math-expression index.
	Math MathIndex

	// Offsets is the (doc, pos) -> byte span store.
	Offsets OffsetStore

	// Parser turns TeX sources into subpaths.
	Parser TeXParser

	// Segment segments lowercased plain-text slices into words.
	// Defaults to lex.SegmentWords.
	Segment SegmentFunc

	// ParseCacheSize is the LRU capacity for TeX parse results.
	ParseCacheSize int
}

// parseOutcome caches one TeX parse result, success or failure.
type parseOutcome struct {
	subpaths []string
	err      error
}

// Session is the per-document state machine. It opens a document in the
// term index, routes slices while advancing the shared position counter,
// and verifies DocID monotonicity on close.
//
// A Session is single-threaded; it outlives individual documents and
// carries lastDocID across them.
type Session struct {
	config SessionConfig

	state     sessionState
	lastDocID DocID
	position  Position

	parseCache *lru.Cache[string, parseOutcome]

	// offsetWriteFailures counts non-fatal offset store errors; they
	// are surfaced in logs and run stats, not propagated.
	offsetWriteFailures uint64

	// texParseFailures counts math slices that degraded to offset-only
	// indexing. Cached failures count every occurrence.
	texParseFailures uint64
}

// NewSession creates a session around the given collaborators.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Terms == nil || config.Math == nil || config.Offsets == nil || config.Parser == nil {
		return nil, errors.New(errors.ErrCodeInternal, "session requires term index, math index, offset store and parser", nil)
	}
	if config.Segment == nil {
		config.Segment = lex.SegmentWords
	}
	size := config.ParseCacheSize
	if size <= 0 {
		size = defaultParseCacheSize
	}
	cache, err := lru.New[string, parseOutcome](size)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	return &Session{config: config, parseCache: cache}, nil
}

// PredictedID returns the DocID the next committed document will get.
// Blob and offset writes issued before End use this value; End verifies
// the term index agrees.
func (s *Session) PredictedID() DocID {
	return s.lastDocID + 1
}

// LastCommittedID returns the DocID of the most recently committed
// document, or 0 when nothing has been committed.
func (s *Session) LastCommittedID() DocID {
	return s.lastDocID
}

// Begin opens a new document. Callable only between documents.
func (s *Session) Begin() error {
	if s.state != stateIdle {
		return errors.New(errors.ErrCodeSessionState, "Begin called on an open session", nil)
	}
	if err := s.config.Terms.BeginDocument(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	s.position = 0
	s.state = stateOpen
	return nil
}

// Route dispatches one slice to the matching handler. Every indexed
// token advances the position counter by exactly one, regardless of
// modality.
func (s *Session) Route(slice lex.Slice) error {
	if s.state != stateOpen {
		return errors.New(errors.ErrCodeSessionState, "Route called without an open document", nil)
	}
	switch slice.Type {
	case lex.SliceMath:
		return s.routeMath(slice)
	case lex.SlicePlainText:
		return s.routePlainText(slice)
	case lex.SliceEnglishText:
		return s.routeEnglishText(slice)
	default:
		return errors.Newf(errors.ErrCodeUnknownSlice, "unknown slice type %d", int(slice.Type))
	}
}

// End commits the document and verifies that the term index assigned
// the predicted DocID. A mismatch is fatal: blob and offset writes for
// this document were already keyed to the prediction.
func (s *Session) End() (DocID, error) {
	if s.state != stateOpen {
		return 0, errors.New(errors.ErrCodeSessionState, "End called without an open document", nil)
	}

	docID, err := s.config.Terms.EndDocument()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	if docID != s.lastDocID+1 {
		return 0, errors.Newf(errors.ErrCodeDocIDDesync,
			"term index committed doc %d, expected %d", docID, s.lastDocID+1)
	}

	s.lastDocID = docID
	s.state = stateIdle
	return docID, nil
}

// Abort discards the open document and returns the session to idle so
// the next record can begin. Offset and blob writes already issued for
// the aborted document are keyed to a prediction that stays valid: the
// next committed document reuses the same ID and overwrites them.
func (s *Session) Abort() {
	if s.state != stateOpen {
		return
	}
	s.config.Terms.AbortDocument()
	s.state = stateIdle
}

// OffsetWriteFailures returns the count of offset writes that failed
// and were skipped over.
func (s *Session) OffsetWriteFailures() uint64 {
	return s.offsetWriteFailures
}

// TeXParseFailures returns the count of math slices whose TeX did not
// parse and were indexed offset-only.
func (s *Session) TeXParseFailures() uint64 {
	return s.texParseFailures
}

// routeMath handles one math slice. The sentinel term goes into the
// term index before the parse is attempted so that position numbering
// stays dense even for unparsable TeX.
func (s *Session) routeMath(slice lex.Slice) error {
	if err := s.config.Terms.AddToken(mathSentinelTerm); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}

	src := lex.StripMathTag(slice.Text)
	outcome := s.parseTeX(src)
	if outcome.err != nil {
		s.texParseFailures++
		slog.Warn("TeX parse failed, keeping offset only",
			slog.String("tex", src),
			slog.Uint64("doc", uint64(s.PredictedID())),
			slog.Uint64("pos", uint64(s.position)),
			slog.String("error", outcome.err.Error()))
	} else {
		if err := s.config.Math.AddExpression(s.PredictedID(), s.position, outcome.subpaths); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWrite, err)
		}
	}

	s.saveOffset(slice.Offset, slice.NBytes)
	s.position++
	return nil
}

// routePlainText lowercases and segments a prose slice, indexing each
// word at its own position with a document-relative byte offset.
func (s *Session) routePlainText(slice lex.Slice) error {
	lowered := lex.ToLowerASCII(slice.Text)
	for _, word := range s.config.Segment(lowered) {
		if err := s.config.Terms.AddToken(word.Text); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWrite, err)
		}
		s.saveOffset(slice.Offset+word.Offset, word.NBytes)
		s.position++
	}
	return nil
}

// routeEnglishText indexes an already-segmented slice as one token.
func (s *Session) routeEnglishText(slice lex.Slice) error {
	if err := s.config.Terms.AddToken(lex.ToLowerASCII(slice.Text)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	s.saveOffset(slice.Offset, slice.NBytes)
	s.position++
	return nil
}

// parseTeX parses src through the LRU cache. Failures are cached too;
// corpora repeat expressions and re-parsing known-bad TeX is wasted work.
func (s *Session) parseTeX(src string) parseOutcome {
	if cached, ok := s.parseCache.Get(src); ok {
		return cached
	}
	subpaths, err := s.config.Parser.Parse(src)
	outcome := parseOutcome{subpaths: subpaths, err: err}
	s.parseCache.Add(src, outcome)
	return outcome
}

// saveOffset writes the offset record for the current position. Write
// failures leave a durability gap but do not stop the document; they
// are logged and counted.
func (s *Session) saveOffset(offset, nBytes uint32) {
	if err := s.config.Offsets.Put(s.PredictedID(), s.position, offset, nBytes); err != nil {
		s.offsetWriteFailures++
		slog.Warn("offset write failed",
			slog.Uint64("doc", uint64(s.PredictedID())),
			slog.Uint64("pos", uint64(s.position)),
			slog.String("error", err.Error()))
	}
}
