// Package store provides the backing structures of the indexing
// pipeline: the bleve term index, the bolt-backed offset map, math
// index and blob stores, and the gzip blob codec.
package store

import (
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/pipeline"
)

// termAnalyzerName is the analyzer applied to document content. Tokens
// arrive already lowercased and segmented, so whitespace splitting plus
// a lowercase guard is all the analysis needed.
const termAnalyzerName = "term_analyzer"

// DefaultBatchSize is the number of documents per committed bleve batch
// when the config leaves it unset.
const DefaultBatchSize = 64

// TermIndexConfig configures the bleve term index.
type TermIndexConfig struct {
	// BatchSize is the number of documents buffered per batch. Each
	// full-batch commit counts as a maintenance event: it is when
	// bleve persists segments and may merge them.
	BatchSize int
}

// BleveTermIndex implements pipeline.TermIndex on a bleve index.
// DocIDs are assigned monotonically at commit; the count of already
// committed documents seeds the counter on reopen.
type BleveTermIndex struct {
	index  bleve.Index
	batch  *bleve.Batch
	config TermIndexConfig

	lastDocID pipeline.DocID
	open      bool
	tokens    []string

	// pending counts documents sitting in the current batch.
	pending int
	// maintained records whether the most recent commit flushed a
	// batch, which is what PollMaintenance reports.
	maintained bool
}

// termDocument is the bleve document shape.
type termDocument struct {
	Content string `json:"content"`
}

// NewBleveTermIndex opens or creates a term index at path.
// An empty path creates an in-memory index (tests).
func NewBleveTermIndex(path string, config TermIndexConfig) (*BleveTermIndex, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	indexMapping, err := createTermMapping()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.New(path, indexMapping)
		if err == bleve.ErrorIndexPathExists {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}

	count, err := idx.DocCount()
	if err != nil {
		_ = idx.Close()
		return nil, errors.Wrap(errors.ErrCodeCorruptIndex, err)
	}

	return &BleveTermIndex{
		index:     idx,
		batch:     idx.NewBatch(),
		config:    config,
		lastDocID: pipeline.DocID(count),
	}, nil
}

// createTermMapping builds the index mapping with the term analyzer.
func createTermMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(termAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []interface{}{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = termAnalyzerName
	contentField.Store = false
	contentField.IncludeTermVectors = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)

	m.DefaultMapping = docMapping
	m.DefaultAnalyzer = termAnalyzerName
	return m, nil
}

// BeginDocument starts accumulating tokens for the next document.
func (t *BleveTermIndex) BeginDocument() error {
	if t.open {
		return errors.New(errors.ErrCodeInternal, "term index document already open", nil)
	}
	t.open = true
	t.tokens = t.tokens[:0]
	return nil
}

// AddToken appends one token to the open document.
func (t *BleveTermIndex) AddToken(text string) error {
	if !t.open {
		return errors.New(errors.ErrCodeInternal, "term index has no open document", nil)
	}
	t.tokens = append(t.tokens, text)
	return nil
}

// EndDocument commits the open document and returns its DocID.
// When the batch fills up it is executed against the index, which is
// where bleve does its segment persistence and merging; that commit
// reports true from the next PollMaintenance.
func (t *BleveTermIndex) EndDocument() (pipeline.DocID, error) {
	if !t.open {
		return 0, errors.New(errors.ErrCodeInternal, "term index has no open document", nil)
	}

	docID := t.lastDocID + 1
	doc := termDocument{Content: strings.Join(t.tokens, " ")}
	if err := t.batch.Index(docKey(docID), doc); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	t.pending++
	t.maintained = false

	if t.pending >= t.config.BatchSize {
		if err := t.index.Batch(t.batch); err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreWrite, err)
		}
		t.batch.Reset()
		t.pending = 0
		t.maintained = true
	}

	t.lastDocID = docID
	t.open = false
	return docID, nil
}

// AbortDocument discards the open document. The batch is untouched;
// only the uncommitted token buffer is dropped.
func (t *BleveTermIndex) AbortDocument() {
	t.open = false
	t.tokens = t.tokens[:0]
}

// PollMaintenance reports whether the most recent commit flushed a
// batch into the index.
func (t *BleveTermIndex) PollMaintenance() bool {
	return t.maintained
}

// DocCount returns the number of documents visible in the index,
// not counting ones still buffered in the batch.
func (t *BleveTermIndex) DocCount() (uint64, error) {
	return t.index.DocCount()
}

// Close flushes any buffered documents and closes the index.
func (t *BleveTermIndex) Close() error {
	if t.pending > 0 {
		if err := t.index.Batch(t.batch); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWrite, err)
		}
		t.batch.Reset()
		t.pending = 0
	}
	return t.index.Close()
}

// docKey renders a DocID as a bleve document key.
func docKey(doc pipeline.DocID) string {
	return strconv.FormatUint(uint64(doc), 10)
}
