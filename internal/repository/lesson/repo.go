// Package lesson persists lesson plans and their runtime retrieval indexes
// in a key-value store.
package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/db"
	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
)

// store is the consumer interface for lessons (ISP).
//
//nolint:interfacebloat // lessons span hash metadata and opaque blobs
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMulti(ctx context.Context, items []db.KVItem) error
}

// Repo stores lessons under {prefix}lesson:{id}:{part}.
type Repo struct {
	store  store
	prefix string
}

// New creates a lesson repository. prefix scopes every key, e.g. "lessontutor:".
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Save publishes a lesson. The index parts are written first, then the plan,
// then the listing metadata, so a readable plan always has its index.
func (r *Repo) Save(ctx context.Context, id string, p plan.Plan, idx *vector.Index, createdAt time.Time) error {
	chunksJSON, err := json.Marshal(idx.Chunks())
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	planJSON, err := plan.Encode(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	err = r.store.SetMulti(ctx, []db.KVItem{
		{Key: r.key(id, "chunks"), Value: chunksJSON},
		{Key: r.key(id, "vectors"), Value: vector.EncodeMatrix(idx.Vectors())},
	})
	if err != nil {
		return fmt.Errorf("save index %s: %w", id, err)
	}

	if err := r.store.Set(ctx, r.key(id, "plan"), planJSON); err != nil {
		return fmt.Errorf("save plan %s: %w", id, err)
	}

	nt, ns, nm := p.Size()
	meta := domlesson.Summary{
		ID:            id,
		Title:         p.Title,
		CreatedAt:     createdAt,
		Topics:        nt,
		Subtopics:     ns,
		MicroSections: nm,
		Chunks:        idx.Len(),
	}
	if err := r.store.HSet(ctx, r.key(id, "meta"), summaryToHash(meta)); err != nil {
		return fmt.Errorf("save meta %s: %w", id, err)
	}
	return nil
}

// Plan loads the stored plan for id.
func (r *Repo) Plan(ctx context.Context, id string) (plan.Plan, error) {
	data, err := r.store.Get(ctx, r.key(id, "plan"))
	if err != nil {
		return plan.Plan{}, notFound(id, "plan", err)
	}
	p, err := plan.Decode(id, data)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return p, nil
}

// Load returns the plan together with its runtime index.
func (r *Repo) Load(ctx context.Context, id string) (plan.Plan, *vector.Index, error) {
	p, err := r.Plan(ctx, id)
	if err != nil {
		return plan.Plan{}, nil, err
	}

	chunksJSON, err := r.store.Get(ctx, r.key(id, "chunks"))
	if err != nil {
		return plan.Plan{}, nil, notFound(id, "chunks", err)
	}
	var chunks []chunk.Chunk
	if err := json.Unmarshal(chunksJSON, &chunks); err != nil {
		return plan.Plan{}, nil, fmt.Errorf("decode chunks %s: %w", id, err)
	}

	vecData, err := r.store.Get(ctx, r.key(id, "vectors"))
	if err != nil {
		return plan.Plan{}, nil, notFound(id, "vectors", err)
	}
	vectors, err := vector.DecodeMatrix(vecData)
	if err != nil {
		return plan.Plan{}, nil, fmt.Errorf("decode vectors %s: %w", id, err)
	}

	idx, err := vector.New(chunks, vectors)
	if err != nil {
		return plan.Plan{}, nil, fmt.Errorf("rebuild index %s: %w", id, err)
	}
	return p, idx, nil
}

// List returns every published lesson, newest first.
func (r *Repo) List(ctx context.Context) ([]domlesson.Summary, error) {
	keys, err := r.store.Scan(ctx, r.key("*", "meta"))
	if err != nil {
		return nil, fmt.Errorf("scan lessons: %w", err)
	}
	if len(keys) == 0 {
		return []domlesson.Summary{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load lesson metadata: %w", err)
	}

	out := make([]domlesson.Summary, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		s, err := summaryFromHash(r.idFromMetaKey(keys[i]), m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

// Delete removes every part of a lesson.
func (r *Repo) Delete(ctx context.Context, id string) error {
	exists, err := r.store.Exists(ctx, r.key(id, "plan"))
	if err != nil {
		return fmt.Errorf("check lesson %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
	}

	// Plan first so a concurrent Load never sees a plan without its index.
	keys := []string{r.key(id, "plan"), r.key(id, "meta"), r.key(id, "chunks"), r.key(id, "vectors")}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("delete lesson %s: %w", id, err)
		}
	}
	return nil
}

func (r *Repo) key(id, part string) string {
	return r.prefix + "lesson:" + id + ":" + part
}

func (r *Repo) idFromMetaKey(key string) string {
	id := strings.TrimPrefix(key, r.prefix+"lesson:")
	return strings.TrimSuffix(id, ":meta")
}

func notFound(id, part string, err error) error {
	if errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s (%s missing)", domain.ErrLessonNotFound, id, part)
	}
	return fmt.Errorf("load %s of lesson %s: %w", part, id, err)
}
