package opensearch

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/label-traiter/pkg/errors"
)

func TestEnsureIndex_Creates(t *testing.T) {
	var created bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			assert.Equal(t, "/labels", r.URL.Path)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "mappings")
			created = true
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected %s", r.Method)
		}
	}))
	defer server.Close()

	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{}, nil)
	require.NoError(t, idx.EnsureIndex(context.Background(), "labels", LabelRecordMapping()))
	assert.True(t, created)
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{}, nil)
	assert.NoError(t, idx.EnsureIndex(context.Background(), "labels", LabelRecordMapping()))
}

func TestEnsureIndex_CreateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception","reason":"bad mapping"}}`))
	}))
	defer server.Close()

	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{}, nil)
	err := idx.EnsureIndex(context.Background(), "labels", LabelRecordMapping())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad mapping")
	assert.True(t, errors.IsCode(err, errors.ErrCodeSinkFailed))
}

func TestBulkIndex_BatchesInOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		ids     []string
		batches int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		mu.Lock()
		batches++
		sc := bufio.NewScanner(r.Body)
		line := 0
		for sc.Scan() {
			if line%2 == 0 {
				var meta bulkMeta
				require.NoError(t, json.Unmarshal(sc.Bytes(), &meta))
				assert.Equal(t, "labels", meta.Index.Index)
				ids = append(ids, meta.Index.ID)
			}
			line++
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	}))
	defer server.Close()

	docs := []Document{
		{ID: "a", Body: map[string]string{"identifier": "a"}},
		{ID: "b", Body: map[string]string{"identifier": "b"}},
		{ID: "c", Body: map[string]string{"identifier": "c"}},
	}
	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{BulkBatchSize: 2}, nil)
	res, err := idx.BulkIndex(context.Background(), "labels", docs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, batches)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"_id":"a","status":201}},
			{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
		]}`))
	}))
	defer server.Close()

	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{}, nil)
	res, err := idx.BulkIndex(context.Background(), "labels", []Document{{ID: "a", Body: 1}, {ID: "b", Body: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "b", res.Errors[0].DocID)
	assert.True(t, strings.Contains(res.Errors[0].Reason, "parse"))
}

func TestBulkIndex_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	idx := NewIndexer(newTestClient(t, server.URL), IndexerConfig{}, nil)
	_, err := idx.BulkIndex(context.Background(), "labels", []Document{{ID: "a", Body: 1}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSinkFailed))
}

func TestBulkIndex_Empty(t *testing.T) {
	idx := NewIndexer(newTestClient(t, "http://127.0.0.1:1"), IndexerConfig{}, nil)
	res, err := idx.BulkIndex(context.Background(), "labels", nil)
	require.NoError(t, err)
	assert.Equal(t, &BulkResult{}, res)
}

func TestLabelRecordMapping(t *testing.T) {
	m := LabelRecordMapping()
	props := m["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "keyword"}, props["identifier"])
	assert.Contains(t, props, "score")
}
