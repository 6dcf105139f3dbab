package directors

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"cmsd/src/model"
	"cmsd/src/settings"
)

// ModelStore is what the model service needs from the store.
type ModelStore interface {
	Find(ctx context.Context, cluster, database, collection string, filter bson.M, opts *model.GetOptions) ([]bson.M, error)
	CreateIndex(ctx context.Context, cluster, database, collection string, index model.Index) error
}

const defaultRefreshInterval = 5 * time.Minute

// ModelService owns the model snapshot. The snapshot is one immutable map
// swapped atomically on refresh, so an in-flight pipeline keeps the models
// it started with and never observes a partial view.
type ModelService struct {
	store  ModelStore
	args   *settings.Arguments
	logger *zap.SugaredLogger

	models   atomic.Pointer[map[string]*model.Model]
	stop     chan struct{}
	stopOnce sync.Once
}

func NewModelService(store ModelStore, args *settings.Arguments, logger *zap.SugaredLogger) *ModelService {
	s := &ModelService{
		store:  store,
		args:   args,
		logger: logger,
		stop:   make(chan struct{}),
	}
	empty := make(map[string]*model.Model)
	s.models.Store(&empty)
	return s
}

// Refresh reloads every model document from the model collection and swaps
// the snapshot. A malformed model document is skipped with a log entry, it
// does not take the whole refresh down.
func (s *ModelService) Refresh(ctx context.Context) error {
	documents, err := s.store.Find(
		ctx,
		s.args.ModelCluster,
		s.args.ModelDatabase,
		s.args.ModelCollection,
		bson.M{},
		&model.GetOptions{NoLimit: true},
	)
	if err != nil {
		return fmt.Errorf("loading models failed: %w", err)
	}

	models := make(map[string]*model.Model, len(documents))
	for _, document := range documents {
		m, err := decodeModel(document)
		if err != nil {
			s.logger.Errorw("skipping malformed model document", "error", err)
			continue
		}
		models[m.Key()] = m
	}

	s.models.Store(&models)
	s.logger.Infow("model snapshot refreshed", "models", len(models))

	s.ensureIndexes(ctx, models)
	return nil
}

func decodeModel(document bson.M) (*model.Model, error) {
	raw, err := bson.Marshal(document)
	if err != nil {
		return nil, err
	}
	var m model.Model
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.Cluster == "" || m.Database == "" || m.Collection == "" {
		return nil, fmt.Errorf("model %v has no cluster/database/collection", document["_id"])
	}
	return &m, nil
}

// ensureIndexes creates the indexes each model declares. Failures are
// logged per index, the models stay usable either way.
func (s *ModelService) ensureIndexes(ctx context.Context, models map[string]*model.Model) {
	for _, m := range models {
		for _, index := range m.Indexes {
			if err := s.store.CreateIndex(ctx, m.Cluster, m.Database, m.Collection, index); err != nil {
				s.logger.Errorw("failed to ensure index", "model", m.Key(), "error", err)
			}
		}
	}
}

// GetModel returns the model loaded under cluster.database.collection.
func (s *ModelService) GetModel(cluster, database, collection string) (*model.Model, error) {
	key := cluster + "." + database + "." + collection
	if m, ok := (*s.models.Load())[key]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, key)
}

// Models returns the current snapshot. Callers must treat it as read only.
func (s *ModelService) Models() map[string]*model.Model {
	return *s.models.Load()
}

// Start refreshes once and then keeps refreshing in the background until
// Stop is called.
func (s *ModelService) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	interval := s.args.ModelRefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					s.logger.Errorw("model refresh failed", "error", err)
				}
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends the background refresh.
func (s *ModelService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
