package search

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

var ErrClosed = errors.New("search engine closed")

type Engine interface {
	Index(ctx context.Context, doc Doc) error
	IndexBatch(ctx context.Context, docs []Doc) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, req Request) (Result, error)
	Count() (uint64, error)
	Close() error
}

type bleveEngine struct {
	cfg    Config
	index  bleve.Index
	mu     sync.RWMutex
	closed bool
}

// New 打开已有索引，不存在则创建
func New(cfg Config) (Engine, error) {
	m := BuildIndexMapping()
	var (
		idx bleve.Index
		err error
	)
	switch {
	case cfg.IndexPath == "":
		idx, err = bleve.NewMemOnly(m)
	default:
		if _, statErr := os.Stat(cfg.IndexPath); statErr == nil {
			idx, err = bleve.Open(cfg.IndexPath)
		} else if os.IsNotExist(statErr) {
			idx, err = bleve.New(cfg.IndexPath, m)
		} else {
			err = statErr
		}
	}
	if err != nil {
		return nil, err
	}
	return &bleveEngine{cfg: cfg, index: idx}, nil
}

// DocID 文档 ID 由类型与主键组成
func DocID(docType string, id uint) string {
	return docType + ":" + strconv.FormatUint(uint64(id), 10)
}

func (e *bleveEngine) guard() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *bleveEngine) withDeadline(ctx context.Context, fn func() error) error {
	if e.cfg.QueryTimeout <= 0 {
		return fn()
	}
	c, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	select {
	case <-c.Done():
		return c.Err()
	case err := <-ch:
		return err
	}
}

func docData(doc Doc) map[string]any {
	data := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		data[k] = v
	}
	data["type"] = doc.Type
	return data
}

func (e *bleveEngine) Index(ctx context.Context, doc Doc) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.withDeadline(ctx, func() error {
		return e.index.Index(doc.ID, docData(doc))
	})
}

func (e *bleveEngine) IndexBatch(ctx context.Context, docs []Doc) error {
	if err := e.guard(); err != nil {
		return err
	}
	bs := e.cfg.BatchSize
	if bs <= 0 {
		bs = 200
	}
	for i := 0; i < len(docs); i += bs {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + bs
		if end > len(docs) {
			end = len(docs)
		}
		b := e.index.NewBatch()
		for _, d := range docs[i:end] {
			if err := b.Index(d.ID, docData(d)); err != nil {
				return err
			}
		}
		if err := e.index.Batch(b); err != nil {
			return err
		}
	}
	return nil
}

func (e *bleveEngine) Delete(ctx context.Context, id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.withDeadline(ctx, func() error {
		return e.index.Delete(id)
	})
}

func (e *bleveEngine) Search(ctx context.Context, req Request) (Result, error) {
	if err := e.guard(); err != nil {
		return Result{}, err
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	sr := bleve.NewSearchRequestOptions(buildQuery(req), req.Size, req.From, false)
	sr.Fields = []string{"*"}
	sr.Highlight = bleve.NewHighlightWithStyle("html")

	var res *bleve.SearchResult
	err := e.withDeadline(ctx, func() error {
		r, err := e.index.SearchInContext(ctx, sr)
		res = r
		return err
	})
	if err != nil {
		return Result{}, err
	}

	out := Result{Total: res.Total, Took: res.Took, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score, Fields: h.Fields, Fragments: h.Fragments}
		if t, ok := h.Fields["type"].(string); ok {
			hit.Type = t
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func buildQuery(req Request) query.Query {
	var must []query.Query
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		must = append(must, bleve.NewMatchAllQuery())
	} else {
		match := bleve.NewMatchQuery(keyword)
		match.SetFuzziness(1)
		prefix := bleve.NewPrefixQuery(strings.ToLower(keyword))
		must = append(must, bleve.NewDisjunctionQuery(match, prefix))
	}
	if len(req.Types) > 0 {
		var types []query.Query
		for _, t := range req.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			types = append(types, tq)
		}
		must = append(must, bleve.NewDisjunctionQuery(types...))
	}
	return bleve.NewConjunctionQuery(must...)
}

func (e *bleveEngine) Count() (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	return e.index.DocCount()
}

func (e *bleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
