package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/lex"
)

type ingestHarness struct {
	*testHarness
	urlBlobs  *fakeBlobStore
	textBlobs *fakeBlobStore
	ingestor  *Ingestor
}

func newIngestHarness(t *testing.T, maxRecordSize int) *ingestHarness {
	t.Helper()
	h := newHarness()
	ih := &ingestHarness{
		testHarness: h,
		urlBlobs:    &fakeBlobStore{rec: h.rec, name: "url"},
		textBlobs:   &fakeBlobStore{rec: h.rec, name: "text"},
	}
	ingestor, err := NewIngestor(IngestorConfig{
		Session:       h.session,
		Terms:         h.terms,
		URLBlobs:      ih.urlBlobs,
		TextBlobs:     ih.textBlobs,
		Codec:         fakeCodec{},
		Offsets:       h.offsets,
		Lex:           lex.Scan,
		MaxRecordSize: maxRecordSize,
	})
	require.NoError(t, err)
	ih.ingestor = ingestor
	return ih
}

func (h *ingestHarness) assertNoWrites(t *testing.T) {
	t.Helper()
	assert.Empty(t, h.urlBlobs.writes, "no URL blob writes expected")
	assert.Empty(t, h.textBlobs.writes, "no text blob writes expected")
	assert.Empty(t, h.offsets.records, "no offset records expected")
	assert.Empty(t, h.math.entries, "no math entries expected")
	assert.Empty(t, h.terms.committed, "no committed documents expected")
	assert.Empty(t, h.rec.events, "no collaborator calls expected")
}

const ballRecord = `{"url":"http://example.com","text":"A ball. $x^2$"}`

func TestIngestRecord_EndToEnd(t *testing.T) {
	h := newIngestHarness(t, 1<<20)

	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))

	// URL blob, uncompressed, keyed to the predicted (now committed) ID
	require.Len(t, h.urlBlobs.writes, 1)
	assert.Equal(t, DocID(1), h.urlBlobs.writes[0].doc)
	assert.Equal(t, "http://example.com", string(h.urlBlobs.writes[0].data))

	// terms "a", "ball" at positions 0,1 then the math sentinel at 2
	require.Len(t, h.terms.committed, 1)
	assert.Equal(t, []string{"a", "ball", "math_exp"}, h.terms.committed[0])

	require.Len(t, h.math.entries, 1)
	assert.Equal(t, mathEntry{doc: 1, pos: 2, subpaths: []string{"leaf(x^2)"}}, h.math.entries[0])

	// one offset record per routed token
	require.Len(t, h.offsets.records, 3)
	assert.Equal(t, offsetRecord{doc: 1, pos: 0, offset: 0, nBytes: 1}, h.offsets.records[0])
	assert.Equal(t, offsetRecord{doc: 1, pos: 1, offset: 2, nBytes: 4}, h.offsets.records[1])
	assert.Equal(t, offsetRecord{doc: 1, pos: 2, offset: 8, nBytes: 6}, h.offsets.records[2])

	// full text blob, compressed, same key
	require.Len(t, h.textBlobs.writes, 1)
	assert.Equal(t, DocID(1), h.textBlobs.writes[0].doc)
	assert.Equal(t, "gz:A ball. $x^2$", string(h.textBlobs.writes[0].data))

	assert.Equal(t, DocID(1), h.session.LastCommittedID())
}

func TestIngestRecord_WriteOrdering(t *testing.T) {
	h := newIngestHarness(t, 1<<20)
	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))

	idx := func(event string) int {
		for i, e := range h.rec.events {
			if strings.HasPrefix(e, event) {
				return i
			}
		}
		t.Fatalf("event %q not recorded in %v", event, h.rec.events)
		return -1
	}

	// URL blob strictly before the session opens; text blob after all
	// routing but before the commit.
	assert.Less(t, idx("blob.url"), idx("term.begin"))
	assert.Less(t, idx("offsets.put 1/2"), idx("blob.text"))
	assert.Less(t, idx("blob.text"), idx("term.end"))
}

func TestIngestRecord_SequentialIDsNoDeduplication(t *testing.T) {
	h := newIngestHarness(t, 1<<20)

	// the same record twice: two distinct sequential documents
	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))
	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))

	require.Len(t, h.urlBlobs.writes, 2)
	assert.Equal(t, DocID(1), h.urlBlobs.writes[0].doc)
	assert.Equal(t, DocID(2), h.urlBlobs.writes[1].doc)
	assert.Equal(t, DocID(2), h.session.LastCommittedID())
	assert.Equal(t, uint64(2), h.ingestor.Stats().RecordsIndexed)
}

func TestIngestRecord_OversizeRejectedWithoutSideEffects(t *testing.T) {
	h := newIngestHarness(t, len(ballRecord))

	err := h.ingestor.IngestRecord([]byte(ballRecord))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRecordTooLarge, errors.CodeOf(err))
	assert.False(t, errors.IsFatal(err))

	h.assertNoWrites(t)
	assert.Equal(t, uint64(1), h.ingestor.Stats().RecordsSkipped)
}

func TestIngestRecord_MalformedRecordsRejectedWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"invalid json", `{"url": "x", `, errors.ErrCodeRecordMalformed},
		{"not an object", `[1,2,3]`, errors.ErrCodeRecordMalformed},
		{"missing url", `{"text":"hello"}`, errors.ErrCodeFieldMissing},
		{"missing text", `{"url":"http://example.com"}`, errors.ErrCodeFieldMissing},
		{"url not a string", `{"url":7,"text":"hello"}`, errors.ErrCodeFieldMissing},
		{"text not a string", `{"url":"u","text":{"a":1}}`, errors.ErrCodeFieldMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newIngestHarness(t, 1<<20)

			err := h.ingestor.IngestRecord([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))

			h.assertNoWrites(t)
		})
	}
}

func TestIngestRecord_UnparsableMathStillCommits(t *testing.T) {
	h := newIngestHarness(t, 1<<20)

	record := `{"url":"u","text":"sum $bad tex$ done"}`
	require.NoError(t, h.ingestor.IngestRecord([]byte(record)))

	// tokens: "sum", sentinel, "done" -> three offset records, no math entry
	require.Len(t, h.terms.committed, 1)
	assert.Equal(t, []string{"sum", "math_exp", "done"}, h.terms.committed[0])
	assert.Empty(t, h.math.entries)
	assert.Len(t, h.offsets.records, 3)
	assert.Equal(t, DocID(1), h.session.LastCommittedID())
	assert.Equal(t, uint64(1), h.ingestor.Stats().TeXParseFailures)
}

func TestIngestRecord_FailedRecordDoesNotPoisonNextRecord(t *testing.T) {
	h := newIngestHarness(t, 1<<20)
	h.textBlobs.writeErr = assert.AnError

	err := h.ingestor.IngestRecord([]byte(ballRecord))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreWrite, errors.CodeOf(err))
	assert.False(t, errors.IsFatal(err))
	assert.Equal(t, uint64(1), h.ingestor.Stats().RecordsSkipped)

	// the next record must index normally under the still-unconsumed ID
	h.textBlobs.writeErr = nil
	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))

	assert.Equal(t, DocID(1), h.session.LastCommittedID())
	require.Len(t, h.terms.committed, 1)
	assert.Equal(t, []string{"a", "ball", "math_exp"}, h.terms.committed[0])
	assert.Equal(t, uint64(1), h.ingestor.Stats().RecordsIndexed)
}

func TestIngestRecord_DesyncIsFatal(t *testing.T) {
	h := newIngestHarness(t, 1<<20)
	h.terms.endOverride = 9

	err := h.ingestor.IngestRecord([]byte(ballRecord))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDocIDDesync, errors.CodeOf(err))
	assert.True(t, errors.IsFatal(err))
}

func TestIngestRecord_MaintenanceThrottlesAndFlushes(t *testing.T) {
	h := newIngestHarness(t, 1<<20)

	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))
	assert.Equal(t, 0, h.offsets.flushes, "no maintenance, no flush")

	h.terms.maintenance = true
	require.NoError(t, h.ingestor.IngestRecord([]byte(ballRecord)))
	assert.Equal(t, 1, h.offsets.flushes, "maintenance must flush the offset store")
	assert.Equal(t, uint64(1), h.ingestor.Stats().MaintenancePauses)
}

func TestIngestRecord_EmptyTextCommitsEmptyDocument(t *testing.T) {
	h := newIngestHarness(t, 1<<20)

	require.NoError(t, h.ingestor.IngestRecord([]byte(`{"url":"u","text":""}`)))

	assert.Empty(t, h.offsets.records)
	require.Len(t, h.terms.committed, 1)
	assert.Empty(t, h.terms.committed[0])
	assert.Equal(t, DocID(1), h.session.LastCommittedID())
	// blobs are still written for the empty document
	assert.Len(t, h.urlBlobs.writes, 1)
	assert.Len(t, h.textBlobs.writes, 1)
}

func TestNewIngestor_Validation(t *testing.T) {
	h := newHarness()

	_, err := NewIngestor(IngestorConfig{})
	require.Error(t, err)

	_, err = NewIngestor(IngestorConfig{
		Session:   h.session,
		Terms:     h.terms,
		URLBlobs:  &fakeBlobStore{},
		TextBlobs: &fakeBlobStore{},
		Codec:     fakeCodec{},
		Offsets:   h.offsets,
		Lex:       lex.Scan,
		// MaxRecordSize missing
	})
	require.Error(t, err)
}
