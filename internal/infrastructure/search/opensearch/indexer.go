package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

var (
	ErrIndexCreationFailed = errors.New(errors.ErrCodeSinkFailed, "index creation failed")
	ErrBulkFailed          = errors.New(errors.ErrCodeSinkFailed, "bulk request failed")
)

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	BulkBatchSize int
	RefreshPolicy string
}

// Document is one bulk item.  ID makes re-indexing overwrite instead of
// duplicate.
type Document struct {
	ID   string
	Body interface{}
}

// BulkItemError describes one rejected document.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarises a BulkIndex call.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// Indexer manages index creation and document ingestion.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
}

// NewIndexer creates a new Indexer.
func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "false"
	}
	return &Indexer{client: client, config: cfg, logger: logging.OrNop(logger)}
}

// IndexExists checks if an index exists.
func (i *Indexer) IndexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{indexName}}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSinkFailed, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, i.handleErrorResponse(resp, errors.New(errors.ErrCodeSinkFailed, "check index existence failed"))
}

// EnsureIndex creates indexName with mapping unless it already exists.
func (i *Indexer) EnsureIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	exists, err := i.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	req := opensearchapi.IndicesCreateRequest{Index: indexName, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSinkFailed, "failed to create index request")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return i.handleErrorResponse(resp, ErrIndexCreationFailed)
	}
	i.logger.Info("Index created", logging.String("index", indexName))
	return nil
}

type bulkMeta struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex indexes documents in batches of BulkBatchSize, in the given
// order.  Per-item rejections are reported in the result; transport and
// HTTP-level failures are returned as errors.
func (i *Indexer) BulkIndex(ctx context.Context, indexName string, docs []Document) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(docs); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := i.bulkBatch(ctx, indexName, docs[start:end], result); err != nil {
			return result, err
		}
	}

	i.logger.Info("Bulk index completed",
		logging.String("index", indexName),
		logging.Int("total", len(docs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}

func (i *Indexer) bulkBatch(ctx context.Context, indexName string, batch []Document, result *BulkResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range batch {
		var meta bulkMeta
		meta.Index.Index = indexName
		meta.Index.ID = doc.ID
		if err := enc.Encode(meta); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal bulk metadata")
		}
		if err := enc.Encode(doc.Body); err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "failed to marshal document %s", doc.ID)
		}
	}

	req := opensearchapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: i.config.RefreshPolicy,
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return ErrBulkFailed.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return i.handleErrorResponse(resp, ErrBulkFailed)
	}

	var br bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	if !br.Errors {
		result.Succeeded += len(batch)
		return nil
	}
	for _, item := range br.Items {
		for _, v := range item {
			if v.Status >= 200 && v.Status < 300 {
				result.Succeeded++
			} else {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{
					DocID:     v.ID,
					ErrorType: v.Error.Type,
					Reason:    v.Error.Reason,
				})
			}
			break
		}
	}
	return nil
}

func (i *Indexer) handleErrorResponse(resp *opensearchapi.Response, defaultErr error) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.Wrapf(defaultErr, errors.CodeUnknown, "OpenSearch error: %s - %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return errors.Wrapf(defaultErr, errors.CodeUnknown, "OpenSearch error status: %d", resp.StatusCode)
}

// LabelRecordMapping is the index mapping for exported label records.  The
// Darwin Core terms are mapped dynamically.
func LabelRecordMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"dynamic": true,
			"properties": map[string]interface{}{
				"identifier":        map[string]interface{}{"type": "keyword"},
				"word_count":        map[string]interface{}{"type": "integer"},
				"valid_words":       map[string]interface{}{"type": "integer"},
				"score":             map[string]interface{}{"type": "float"},
				"recordNumber":      map[string]interface{}{"type": "keyword"},
				"catalogNumber":     map[string]interface{}{"type": "keyword"},
				"dynamicProperties": map[string]interface{}{"type": "object", "dynamic": true},
			},
		},
	}
}
