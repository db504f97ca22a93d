package es

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch"
	"github.com/elastic/go-elasticsearch/esapi"

	"github.com/remotefish2024/streamexec/pipeline"
	"github.com/remotefish2024/streamexec/storage"
)

type esErrorRes struct {
	Error esError `json:"error"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

var _ storage.Consumer = (*Writer)(nil)

// Writer persists chunks as documents of an elasticsearch index, one
// document per row keyed by column name.
type Writer struct {
	es         *elasticsearch.Client
	index      string
	refreshOpt func(*esapi.IndexRequest)
}

// NewWriter connects to the cluster specified by esNodes and writes into
// index. With syncWrites set every document is visible to searches as soon
// as Consume returns.
func NewWriter(esNodes []string, index string, syncWrites bool) (*Writer, error) {
	cfg := elasticsearch.Config{
		Addresses: esNodes,
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	refreshOpt := es.Index.WithRefresh("false")
	if syncWrites {
		refreshOpt = es.Index.WithRefresh("true")
	}

	return &Writer{
		es:         es,
		index:      index,
		refreshOpt: refreshOpt,
	}, nil
}

func (w *Writer) Consume(chunk *pipeline.Chunk) error {
	doc := make(map[string]interface{}, len(chunk.Columns))
	for row := 0; row < chunk.NumRows; row++ {
		for _, col := range chunk.Columns {
			doc[col.Name] = col.Values[row]
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("index into %q: %w", w.index, err)
		}

		res, err := w.es.Index(w.index, &buf, w.refreshOpt)
		if err != nil {
			return fmt.Errorf("index into %q: %w", w.index, err)
		}
		if err = unmarshalError(res); err != nil {
			return fmt.Errorf("index into %q: %w", w.index, err)
		}
	}

	return nil
}

func unmarshalError(res *esapi.Response) error {
	defer func() {
		_ = res.Body.Close()
	}()

	if !res.IsError() {
		return nil
	}

	var errRes esErrorRes
	if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil {
		return err
	}

	return errRes.Error
}
