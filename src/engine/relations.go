package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cmsd/src/model"
)

// Finder is the single store primitive the engine reads with.
type Finder interface {
	Find(ctx context.Context, cluster, database, collection string, filter bson.M, opts *model.GetOptions) ([]bson.M, error)
}

const defaultRelationConcurrency = 4

// Resolver fills in relation and virtual fields of a document. Relation
// lookups are independent of each other and run concurrently, bounded by the
// configured limit so a wide model cannot drain the store's connection pool.
type Resolver struct {
	store       Finder
	concurrency int
	logger      *zap.SugaredLogger
}

func NewResolver(store Finder, concurrency int, logger *zap.SugaredLogger) *Resolver {
	if concurrency <= 0 {
		concurrency = defaultRelationConcurrency
	}
	return &Resolver{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Resolve looks up every relation field of document, embeds the non-empty
// results, records the substituted filters and required-but-absent relations
// into meta, then derives the virtual fields from the resolved relations.
// A store failure or an unparseable substituted filter is fatal for the
// document and returned as an error, it never lands in meta.
func (r *Resolver) Resolve(ctx context.Context, document bson.M, m *model.Model, meta *model.Meta) error {
	var relationFields []model.Field
	for _, field := range m.Fields {
		if field.Relation != nil {
			relationFields = append(relationFields, field)
		}
	}
	if len(relationFields) == 0 {
		return nil
	}

	results := make(map[string][]bson.M, len(relationFields))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs error

	for _, field := range relationFields {
		wg.Add(1)
		go func(field model.Field) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			relation := field.Relation
			filter := BuildRelationFilter(relation.Filter, document, m)

			parsed, err := ParseFilter(filter)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("field %s: %w", field.Name, err))
				mu.Unlock()
				return
			}

			relations, err := r.store.Find(ctx, relation.Cluster, relation.Database, relation.Collection, parsed, nil)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("field %s: relation lookup failed: %w", field.Name, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			defer mu.Unlock()
			results[field.Name] = relations
			meta.SetRelationFilter(field.Name, filter)
			if field.Required && len(relations) == 0 {
				meta.AddRelationError(field.Name, fmt.Sprintf("no relation found with filter %s", filter))
			}
		}(field)
	}
	wg.Wait()

	if errs != nil {
		return errs
	}

	for _, field := range relationFields {
		if relations := results[field.Name]; len(relations) > 0 && !field.Hidden {
			document[field.Name] = relations
		}
	}

	r.deriveVirtuals(document, m, results)
	return nil
}

// deriveVirtuals walks each virtual field's dotted path into the first
// result of its relation. Resolution happens off the results map, so a
// virtual can read a hidden relation that was never embedded.
func (r *Resolver) deriveVirtuals(document bson.M, m *model.Model, results map[string][]bson.M) {
	for _, field := range m.Fields {
		if field.Virtual == "" {
			continue
		}
		path := strings.Split(field.Virtual, ".")
		relations := results[path[0]]
		if len(relations) == 0 {
			continue
		}

		var current interface{} = relations[0]
		for _, part := range path[1:] {
			doc, ok := asDocument(current)
			if !ok {
				current = nil
				break
			}
			current = doc[part]
		}
		if current != nil {
			document[field.Name] = current
		}
	}
}
