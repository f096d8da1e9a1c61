// Package recall surfaces lightweight memory about the user's past tasks
// so replies can reference earlier work. Lookups hit the task store and are
// memoized per conversation session.
package recall

import (
	"context"
	"strings"

	"github.com/maypok86/otter"

	"github.com/wthorbecke/gather/backend/task"
	"github.com/wthorbecke/gather/shared"
)

// Source answers a free-form memory lookup for a task title.
type Source interface {
	Lookup(ctx context.Context, title string) (string, error)
}

type Service struct {
	source Source
	cache  otter.Cache[string, string]
}

func NewService(source Source, capacity int) (*Service, error) {
	cache, err := otter.MustBuilder[string, string](capacity).Build()
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceSystem, err, "failed to build recall cache")
	}

	return &Service{source: source, cache: cache}, nil
}

// RelevantMemory returns a short note about related past work, or an empty
// string when nothing relevant exists. Results are cached by normalized title.
func (s *Service) RelevantMemory(ctx context.Context, title string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(title))
	if key == "" {
		return "", nil
	}

	if memory, ok := s.cache.Get(key); ok {
		return memory, nil
	}

	memory, err := s.source.Lookup(ctx, title)
	if err != nil {
		return "", shared.Wrap(shared.ErrorSourceStore, err, "memory lookup failed")
	}

	s.cache.Set(key, memory)
	return memory, nil
}

// TaskSource derives memory from the task store by matching title keywords
// against past task titles.
type TaskSource struct {
	store task.Store
}

func NewTaskSource(store task.Store) *TaskSource {
	return &TaskSource{store: store}
}

func (s *TaskSource) Lookup(ctx context.Context, title string) (string, error) {
	tasks, err := s.store.GetTasks(ctx)
	if err != nil {
		return "", err
	}

	keywords := keywordsOf(title)
	if len(keywords) == 0 {
		return "", nil
	}

	var related []string
	for _, t := range tasks {
		if sharesKeyword(keywordsOf(t.Title), keywords) {
			related = append(related, t.Title)
		}
	}
	if len(related) == 0 {
		return "", nil
	}

	return "Related past tasks: " + strings.Join(related, "; "), nil
}

// keywordsOf keeps lowercased tokens long enough to carry meaning.
func keywordsOf(title string) []string {
	var keywords []string
	for _, token := range strings.Fields(strings.ToLower(title)) {
		token = strings.Trim(token, ".,!?\"'")
		if len(token) >= 4 {
			keywords = append(keywords, token)
		}
	}
	return keywords
}

func sharesKeyword(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
