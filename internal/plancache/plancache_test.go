package plancache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const samplePlan = `[{"Plan":{"Node Type":"Seq Scan","Relation Name":"users","Total Cost":120.5,"Plan Rows":1000,"Plan Width":64}}]`

type countingSource struct {
	calls   atomic.Int64
	payload string
	err     error
}

func (s *countingSource) ExplainJSON(_ context.Context, _ string) ([]byte, error) {
	s.calls.Inc()
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.payload), nil
}

func openMemory(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheGetPut(t *testing.T) {
	c := openMemory(t)
	key := Key("db", "SELECT 1")

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, []byte("payload")))
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))
}

func TestKeyScopesAndTrims(t *testing.T) {
	assert.Equal(t, Key("a", "SELECT 1"), Key("a", "  SELECT 1\n"))
	assert.NotEqual(t, Key("a", "SELECT 1"), Key("b", "SELECT 1"))
}

func TestProviderFetchesOnce(t *testing.T) {
	src := &countingSource{payload: samplePlan}
	p := NewProvider(openMemory(t), src, "db", nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		plan, err := p.Explain(ctx, "SELECT * FROM users")
		require.NoError(t, err)
		require.NotNil(t, plan.Plan)
		assert.Equal(t, "users", plan.Plan.RelationName)
	}
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestProviderDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	p := NewProvider(openMemory(t), src, "db", nil)

	_, err := p.Explain(context.Background(), "SELECT 1")
	require.Error(t, err)
	_, err = p.Explain(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ", Options{})
	require.Error(t, err)
}
