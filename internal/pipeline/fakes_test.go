package pipeline

import (
	"fmt"
	"strings"
)

// recorder keeps a global ordering of collaborator calls so tests can
// assert write ordering across stores.
type recorder struct {
	events []string
}

func (r *recorder) log(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

type fakeTermIndex struct {
	rec  *recorder
	open bool

	lastID DocID
	// endOverride, when nonzero, is returned by the next EndDocument
	// to simulate a desynchronized term index.
	endOverride DocID

	committed [][]string
	current   []string

	maintenance bool
	beginErr    error
	addErr      error
}

func (f *fakeTermIndex) BeginDocument() error {
	if f.rec != nil {
		f.rec.log("term.begin")
	}
	if f.beginErr != nil {
		return f.beginErr
	}
	f.open = true
	f.current = nil
	return nil
}

func (f *fakeTermIndex) AddToken(text string) error {
	if f.rec != nil {
		f.rec.log("term.add %s", text)
	}
	if f.addErr != nil {
		return f.addErr
	}
	f.current = append(f.current, text)
	return nil
}

func (f *fakeTermIndex) EndDocument() (DocID, error) {
	if f.rec != nil {
		f.rec.log("term.end")
	}
	f.open = false
	f.committed = append(f.committed, f.current)
	if f.endOverride != 0 {
		id := f.endOverride
		f.endOverride = 0
		return id, nil
	}
	f.lastID++
	return f.lastID, nil
}

func (f *fakeTermIndex) AbortDocument() {
	if f.rec != nil {
		f.rec.log("term.abort")
	}
	f.open = false
	f.current = nil
}

func (f *fakeTermIndex) PollMaintenance() bool {
	return f.maintenance
}

type mathEntry struct {
	doc      DocID
	pos      Position
	subpaths []string
}

type fakeMathIndex struct {
	rec     *recorder
	entries []mathEntry
}

func (f *fakeMathIndex) AddExpression(doc DocID, pos Position, subpaths []string) error {
	if f.rec != nil {
		f.rec.log("math.add %d/%d", doc, pos)
	}
	f.entries = append(f.entries, mathEntry{doc, pos, subpaths})
	return nil
}

type offsetRecord struct {
	doc    DocID
	pos    Position
	offset uint32
	nBytes uint32
}

type fakeOffsetStore struct {
	rec     *recorder
	records []offsetRecord
	flushes int
	putErr  error
}

func (f *fakeOffsetStore) Put(doc DocID, pos Position, offset, nBytes uint32) error {
	if f.rec != nil {
		f.rec.log("offsets.put %d/%d", doc, pos)
	}
	if f.putErr != nil {
		return f.putErr
	}
	f.records = append(f.records, offsetRecord{doc, pos, offset, nBytes})
	return nil
}

func (f *fakeOffsetStore) Flush() error {
	f.flushes++
	return nil
}

type blobWrite struct {
	doc  DocID
	data []byte
}

type fakeBlobStore struct {
	rec      *recorder
	name     string
	writes   []blobWrite
	writeErr error
}

func (f *fakeBlobStore) Write(doc DocID, data []byte) error {
	if f.rec != nil {
		f.rec.log("blob.%s %d", f.name, doc)
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, blobWrite{doc, append([]byte(nil), data...)})
	return nil
}

// fakeCodec marks payloads instead of compressing, so tests can tell
// compressed writes from raw ones.
type fakeCodec struct{}

func (fakeCodec) Compress(data []byte) ([]byte, error) {
	return append([]byte("gz:"), data...), nil
}

// fakeParser returns one canned subpath per source and fails on
// anything containing "bad". It counts calls for cache assertions.
type fakeParser struct {
	calls int
}

func (f *fakeParser) Parse(src string) ([]string, error) {
	f.calls++
	if src == "" || strings.Contains(src, "bad") {
		return nil, fmt.Errorf("cannot parse %q", src)
	}
	return []string{"leaf(" + src + ")"}, nil
}

// testHarness bundles a session plus its fakes.
type testHarness struct {
	rec     *recorder
	terms   *fakeTermIndex
	math    *fakeMathIndex
	offsets *fakeOffsetStore
	parser  *fakeParser
	session *Session
}

func newHarness() *testHarness {
	rec := &recorder{}
	h := &testHarness{
		rec:     rec,
		terms:   &fakeTermIndex{rec: rec},
		math:    &fakeMathIndex{rec: rec},
		offsets: &fakeOffsetStore{rec: rec},
		parser:  &fakeParser{},
	}
	session, err := NewSession(SessionConfig{
		Terms:   h.terms,
		Math:    h.math,
		Offsets: h.offsets,
		Parser:  h.parser,
	})
	if err != nil {
		panic(err)
	}
	h.session = session
	return h
}
