// Package recorder persists per episode summaries of training runs to
// files or to a redis list.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrClosed = errors.New("recorder: closed")

// EpisodeSummary is what gets recorded for every finished episode
type EpisodeSummary struct {
	Experiment  string    `json:"experiment" msgpack:"experiment"`
	Run         int       `json:"run" msgpack:"run"`
	Episode     int       `json:"episode" msgpack:"episode"`
	Steps       int       `json:"steps" msgpack:"steps"`
	TotalReward float64   `json:"total_reward" msgpack:"total_reward"`
	MeanReward  float64   `json:"mean_reward" msgpack:"mean_reward"`
	StdReward   float64   `json:"std_reward" msgpack:"std_reward"`
	Terminal    bool      `json:"terminal" msgpack:"terminal"`
	Actions     []string  `json:"actions,omitempty" msgpack:"actions,omitempty"`
	Rewards     []float64 `json:"rewards,omitempty" msgpack:"rewards,omitempty"`
	DurationMs  int64     `json:"duration_ms" msgpack:"duration_ms"`
	Error       string    `json:"error,omitempty" msgpack:"error,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, s *EpisodeSummary) error
	Close() error
}

type Format string

const (
	JSONL   Format = "jsonl"
	Msgpack Format = "msgpack"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case JSONL, "json", "":
		return JSONL, nil
	case Msgpack:
		return Msgpack, nil
	}
	return "", fmt.Errorf("recorder: unknown format %q", s)
}

// Ext is the file extension of the format
func (f Format) Ext() string {
	if f == Msgpack {
		return ".msgpack"
	}
	return ".jsonl"
}

// FileRecorder appends summaries to a file. JSONL writes one object per
// line, msgpack writes the encoded values back to back.
type FileRecorder struct {
	path   string
	format Format

	lock   *sync.Mutex
	file   *os.File
	closed bool
}

var _ Recorder = &FileRecorder{}

// NewFileRecorder creates the parent directories and opens the file for appending
func NewFileRecorder(path string, format Format) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		path:   path,
		format: format,
		lock:   new(sync.Mutex),
		file:   f,
	}, nil
}

func (r *FileRecorder) Path() string {
	return r.path
}

func (r *FileRecorder) Record(_ context.Context, s *EpisodeSummary) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return ErrClosed
	}
	var bs []byte
	var err error
	switch r.format {
	case Msgpack:
		bs, err = msgpack.Marshal(s)
	default:
		bs, err = json.Marshal(s)
		bs = append(bs, '\n')
	}
	if err != nil {
		return err
	}
	_, err = r.file.Write(bs)
	return err
}

func (r *FileRecorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// RedisRecorder pushes JSON encoded summaries onto a redis list
type RedisRecorder struct {
	client *redis.Client
	key    string
}

var _ Recorder = &RedisRecorder{}

func NewRedisRecorder(addr, key string) *RedisRecorder {
	return &RedisRecorder{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// NewRedisRecorderWithClient records through an existing client, closing the
// recorder closes the client
func NewRedisRecorderWithClient(client *redis.Client, key string) *RedisRecorder {
	return &RedisRecorder{client: client, key: key}
}

func (r *RedisRecorder) Key() string {
	return r.key
}

// Ping checks the server is reachable
func (r *RedisRecorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRecorder) Record(ctx context.Context, s *EpisodeSummary) error {
	bs, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, r.key, bs).Err(); err != nil {
		return fmt.Errorf("recorder: pushing to %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

// MultiRecorder fans out to several recorders, all of them are attempted
type MultiRecorder []Recorder

var _ Recorder = MultiRecorder{}

func (m MultiRecorder) Record(ctx context.Context, s *EpisodeSummary) error {
	errs := make([]error, 0)
	for _, r := range m {
		if err := r.Record(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) Close() error {
	errs := make([]error, 0)
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadFile decodes every summary of a file written by a FileRecorder
func ReadFile(path string, format Format) ([]*EpisodeSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out := make([]*EpisodeSummary, 0)
	if format == Msgpack {
		dec := msgpack.NewDecoder(f)
		for {
			s := &EpisodeSummary{}
			if err := dec.Decode(s); err != nil {
				if errors.Is(err, io.EOF) {
					return out, nil
				}
				return out, err
			}
			out = append(out, s)
		}
	}
	dec := json.NewDecoder(f)
	for dec.More() {
		s := &EpisodeSummary{}
		if err := dec.Decode(s); err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
