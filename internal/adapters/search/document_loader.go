package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const maxDocumentLine = 4 << 20

// DocumentWriter stores source documents in a named index
type DocumentWriter interface {
	IndexDocuments(ctx context.Context, index string, docs []repositories.SearchHit) error
}

// ReadDocuments parses newline-delimited JSON objects. Each object's "id"
// becomes the document id; blank lines are skipped.
func ReadDocuments(r io.Reader) ([]repositories.SearchHit, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentLine)

	var docs []repositories.SearchHit
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var doc map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("line %d: not a JSON object", line))
		}
		id := dsl.FormatID(doc["id"])
		if id == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("line %d: document has no id", line))
		}
		docs = append(docs, repositories.SearchHit{ID: id, Source: append(json.RawMessage(nil), raw...)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// LoadDocuments reads r and writes its documents to index in batches of
// batchSize. It returns the number of documents written.
func LoadDocuments(ctx context.Context, w DocumentWriter, index string, r io.Reader, batchSize int) (int, error) {
	docs, err := ReadDocuments(r)
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = len(docs)
	}

	written := 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		if err := w.IndexDocuments(ctx, index, docs[start:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}
