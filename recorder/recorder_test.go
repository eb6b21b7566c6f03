package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaries() []*EpisodeSummary {
	return []*EpisodeSummary{
		{Experiment: "direct", Run: 0, Episode: 1, Steps: 3, TotalReward: 21, MeanReward: 7, StdReward: 1, Terminal: true, Actions: []string{"[0]", "[1]", "[2]"}, Rewards: []float64{6, 7, 8}},
		{Experiment: "direct", Run: 0, Episode: 2, Steps: 0, Error: "connection refused"},
	}
}

func TestFileRecorderFormats(t *testing.T) {
	for _, format := range []Format{JSONL, Msgpack} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "traces", "direct"+format.Ext())
			r, err := NewFileRecorder(path, format)
			require.NoError(t, err)
			for _, s := range summaries() {
				require.NoError(t, r.Record(context.Background(), s))
			}
			require.NoError(t, r.Close())
			require.NoError(t, r.Close())

			got, err := ReadFile(path, format)
			require.NoError(t, err)
			assert.Equal(t, summaries(), got)

			assert.ErrorIs(t, r.Record(context.Background(), summaries()[0]), ErrClosed)
		})
	}
}

func TestFileRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for i := 0; i < 2; i++ {
		r, err := NewFileRecorder(path, JSONL)
		require.NoError(t, err)
		require.NoError(t, r.Record(context.Background(), summaries()[0]))
		require.NoError(t, r.Close())
	}
	got, err := ReadFile(path, JSONL)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), `"total_reward":21`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, JSONL, f)
	f, err = ParseFormat("msgpack")
	require.NoError(t, err)
	assert.Equal(t, ".msgpack", f.Ext())
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

type failing struct {
	err    error
	calls  int
	closed bool
}

func (f *failing) Record(context.Context, *EpisodeSummary) error {
	f.calls++
	return f.err
}

func (f *failing) Close() error {
	f.closed = true
	return f.err
}

func TestMultiRecorderTriesAll(t *testing.T) {
	boom := errors.New("boom")
	a := &failing{err: boom}
	b := &failing{}
	m := MultiRecorder{a, b}

	err := m.Record(context.Background(), summaries()[0])
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.NoError(t, MultiRecorder{b}.Record(context.Background(), summaries()[0]))
}

func TestRedisRecorderUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	r := NewRedisRecorderWithClient(client, "episodes")
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, r.Record(ctx, summaries()[0]))
	assert.Error(t, r.Ping(ctx))
}

// Runs against a live server when REDIS_ADDR is set
func TestRedisRecorderPushes(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "sumo-rl-test:" + t.Name()
	r := NewRedisRecorder(addr, key)
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	client.Del(ctx, key)
	defer client.Del(ctx, key)

	for _, s := range summaries() {
		require.NoError(t, r.Record(ctx, s))
	}
	n, err := client.LLen(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
