package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	e, err := New(Config{QueryTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSearchFiltersByType(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	require.NoError(t, e.IndexBatch(ctx, []Doc{
		{ID: DocID(TypeCrime, 1), Type: TypeCrime, Fields: map[string]any{
			"title": "Stolen bicycle", "description": "Bicycle taken from the station rack", "status": "submitted",
		}},
		{ID: DocID(TypeIncident, 1), Type: TypeIncident, Fields: map[string]any{
			"title": "Bicycle collision", "description": "Two riders injured", "status": "open",
		}},
		{ID: DocID(TypeCriminal, 1), Type: TypeCriminal, Fields: map[string]any{
			"fullName": "Marco Rossi", "alias": "the bicycle thief", "status": "wanted",
		}},
	}))

	count, err := e.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	res, err := e.Search(ctx, Request{Keyword: "bicycle"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	res, err = e.Search(ctx, Request{Keyword: "bicycle", Types: []string{TypeCrime}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "crime:1", res.Hits[0].ID)
	assert.Equal(t, TypeCrime, res.Hits[0].Type)
	assert.Equal(t, "Stolen bicycle", res.Hits[0].Fields["title"])
}

func TestIndexReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id := DocID(TypeCriminal, 9)
	require.NoError(t, e.Index(ctx, Doc{ID: id, Type: TypeCriminal, Fields: map[string]any{"fullName": "Jane Roe"}}))
	require.NoError(t, e.Index(ctx, Doc{ID: id, Type: TypeCriminal, Fields: map[string]any{"fullName": "Janet Roe"}}))

	res, err := e.Search(ctx, Request{Keyword: "janet"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)

	require.NoError(t, e.Delete(ctx, id))
	res, err = e.Search(ctx, Request{Keyword: "janet"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Total)
}

func TestClosedEngine(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Search(context.Background(), Request{Keyword: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}
