package pipeline

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Aman-CERP/mathdex/internal/errors"
)

// Stats accumulates counters over one ingestion run.
type Stats struct {
	// RecordsIndexed is the number of committed documents.
	RecordsIndexed uint64
	// RecordsSkipped counts records dropped for size or shape.
	RecordsSkipped uint64
	// MaintenancePauses counts throttled maintenance events.
	MaintenancePauses uint64
	// OffsetWriteFailures mirrors the session counter at last read.
	OffsetWriteFailures uint64
	// TeXParseFailures mirrors the session counter at last read.
	TeXParseFailures uint64
}

// IngestorConfig contains the ingestor's collaborators and limits.
type IngestorConfig struct {
	// Session drives per-document indexing.
	Session *Session

	// Terms is polled for maintenance after each commit. It must be
	// the same index the session writes to.
	Terms TermIndex

	// URLBlobs stores record URLs, uncompressed.
	URLBlobs BlobStore

	// TextBlobs stores the full text field, compressed with Codec.
	TextBlobs BlobStore

	// Codec compresses text blobs.
	Codec Codec

	// Offsets is flushed when maintenance runs.
	Offsets OffsetStore

	// Lex splits the text field into slices.
	Lex LexFunc

	// MaxRecordSize rejects records at or above this many bytes as
	// likely truncated.
	MaxRecordSize int

	// MaintenanceThrottle is the pause after a maintenance event.
	MaintenanceThrottle time.Duration
}

// Ingestor reads one corpus record at a time and drives it end to end:
// JSON field extraction, blob writes, a full document session, and the
// post-commit maintenance poll. Single-threaded by design; one record
// runs to completion before the next starts.
type Ingestor struct {
	config IngestorConfig
	stats  Stats
}

// NewIngestor creates an ingestor.
func NewIngestor(config IngestorConfig) (*Ingestor, error) {
	if config.Session == nil || config.Terms == nil || config.URLBlobs == nil ||
		config.TextBlobs == nil || config.Codec == nil || config.Offsets == nil ||
		config.Lex == nil {
		return nil, errors.New(errors.ErrCodeInternal, "ingestor is missing a collaborator", nil)
	}
	if config.MaxRecordSize <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "ingestor requires a positive max record size", nil)
	}
	return &Ingestor{config: config}, nil
}

// Stats returns a copy of the run counters.
func (in *Ingestor) Stats() Stats {
	st := in.stats
	st.OffsetWriteFailures = in.config.Session.OffsetWriteFailures()
	st.TeXParseFailures = in.config.Session.TeXParseFailures()
	return st
}

// IngestRecord processes one raw corpus record. Validation failures
// (oversize, malformed JSON, missing fields) skip the record and return
// a non-fatal coded error with no partial state written. A fatal error
// (DocID desynchronization) means the process must stop; check with
// errors.IsFatal.
func (in *Ingestor) IngestRecord(raw []byte) error {
	if len(raw) >= in.config.MaxRecordSize {
		in.stats.RecordsSkipped++
		return errors.Newf(errors.ErrCodeRecordTooLarge,
			"record size %d reached cap %d, treating as truncated", len(raw), in.config.MaxRecordSize)
	}

	url, text, err := extractRecordFields(raw)
	if err != nil {
		in.stats.RecordsSkipped++
		return err
	}

	// The URL blob is keyed to the predicted DocID and must be written
	// before the session opens; the prediction is only valid until End
	// confirms it.
	predicted := in.config.Session.PredictedID()
	if err := in.config.URLBlobs.Write(predicted, []byte(url)); err != nil {
		in.stats.RecordsSkipped++
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}

	if err := in.indexTextField(predicted, text); err != nil {
		// A non-fatal mid-session failure is record-scoped: discard the
		// open document so the next record can begin cleanly. Fatal
		// faults stop the run, so the open state no longer matters.
		if !errors.IsFatal(err) {
			in.config.Session.Abort()
			in.stats.RecordsSkipped++
		}
		return err
	}

	in.stats.RecordsIndexed++
	in.maintain()
	return nil
}

// indexTextField runs one document session over the text field.
func (in *Ingestor) indexTextField(predicted DocID, text string) error {
	if err := in.config.Session.Begin(); err != nil {
		return err
	}

	slices, err := in.config.Lex(text)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	for _, slice := range slices {
		if err := in.config.Session.Route(slice); err != nil {
			return err
		}
	}

	// The compressed text blob is written after routing but before the
	// commit, keyed to the same predicted ID that End verifies.
	compressed, err := in.config.Codec.Compress([]byte(text))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := in.config.TextBlobs.Write(predicted, compressed); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}

	docID, err := in.config.Session.End()
	if err != nil {
		return err
	}

	slog.Debug("document committed",
		slog.Uint64("doc", uint64(docID)),
		slog.Int("slices", len(slices)))
	return nil
}

// maintain polls the term index once per committed document. When the
// index reports that maintenance ran, ingestion yields for the throttle
// interval and the offset store is flushed so offset records survive a
// disruptive merge.
func (in *Ingestor) maintain() {
	if !in.config.Terms.PollMaintenance() {
		return
	}

	in.stats.MaintenancePauses++
	slog.Info("term index maintenance in progress, throttling",
		slog.Uint64("last_doc", uint64(in.config.Session.LastCommittedID())),
		slog.Duration("pause", in.config.MaintenanceThrottle))

	time.Sleep(in.config.MaintenanceThrottle)

	if err := in.config.Offsets.Flush(); err != nil {
		slog.Warn("offset store flush failed", slog.String("error", err.Error()))
	}
}

// extractRecordFields pulls the url and text string fields out of a raw
// JSON record. Both must be present and be strings.
func extractRecordFields(raw []byte) (url, text string, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", "", errors.Wrap(errors.ErrCodeRecordMalformed, err)
	}

	url, err = stringField(fields, "url")
	if err != nil {
		return "", "", err
	}
	text, err = stringField(fields, "text")
	if err != nil {
		return "", "", err
	}
	return url, text, nil
}

// stringField decodes one required string field.
func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", errors.Newf(errors.ErrCodeFieldMissing, "record has no %q field", name)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.Newf(errors.ErrCodeFieldMissing, "record field %q is not a string", name)
	}
	return value, nil
}
