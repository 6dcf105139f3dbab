package directors

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"cmsd/src/model"
	"cmsd/src/settings"
)

// fakeStore implements ModelStore and CollectionStore against in-memory
// data keyed by cluster.database.collection.
type fakeStore struct {
	mu        sync.Mutex
	documents map[string][]bson.M
	findErr   error

	inserted []bson.M
	replaced []bson.M
	updated  []bson.M
	bulk     [][]mongo.WriteModel
	deleted  []bson.M
	indexed  []model.Index
}

func key(cluster, database, collection string) string {
	return cluster + "." + database + "." + collection
}

func (f *fakeStore) Find(_ context.Context, cluster, database, collection string, _ bson.M, _ *model.GetOptions) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.documents[key(cluster, database, collection)], nil
}

func (f *fakeStore) CreateIndex(_ context.Context, _, _, _ string, index model.Index) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, index)
	return nil
}

func (f *fakeStore) InsertOne(_ context.Context, _, _, _ string, document bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, document)
	return nil
}

func (f *fakeStore) UpdateOne(_ context.Context, _, _, _ string, _, update bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, update)
	return 1, nil
}

func (f *fakeStore) EstimatedCount(_ context.Context, cluster, database, collection string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.documents[key(cluster, database, collection)])), nil
}

func (f *fakeStore) ReplaceOne(_ context.Context, _, _, _ string, _, document bson.M, _ bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, document)
	return 1, nil
}

func (f *fakeStore) DeleteMany(_ context.Context, _, _, _ string, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, filter)
	return 1, nil
}

func (f *fakeStore) BulkWrite(_ context.Context, _, _, _ string, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, writes)
	return &mongo.BulkWriteResult{}, nil
}

func modelArguments() *settings.Arguments {
	return &settings.Arguments{
		ModelCluster:    "main",
		ModelDatabase:   "cms",
		ModelCollection: "model",
	}
}

func userModelDocument() bson.M {
	return bson.M{
		"cluster":    "main",
		"database":   "cms",
		"collection": "user",
		"fields": bson.A{
			bson.M{"name": "name", "isId": true, "type": "string", "required": true},
			bson.M{"name": "age", "type": "integer"},
		},
		"indexes": bson.A{
			bson.M{"keys": bson.M{"name": 1}, "unique": true},
		},
	}
}

func TestRefreshLoadsModels(t *testing.T) {
	store := &fakeStore{documents: map[string][]bson.M{
		"main.cms.model": {userModelDocument()},
	}}
	service := NewModelService(store, modelArguments(), zap.NewNop().Sugar())

	require.NoError(t, service.Refresh(context.Background()))

	m, err := service.GetModel("main", "cms", "user")
	require.NoError(t, err)
	assert.Equal(t, "main.cms.user", m.Key())
	require.Len(t, m.Fields, 2)
	assert.True(t, m.Fields[0].IsID)
	assert.Equal(t, model.TypeInteger, m.Fields[1].Type)

	// declared indexes get ensured on refresh
	require.Len(t, store.indexed, 1)
	assert.True(t, store.indexed[0].Unique)
}

func TestRefreshSkipsMalformedModel(t *testing.T) {
	store := &fakeStore{documents: map[string][]bson.M{
		"main.cms.model": {
			bson.M{"cluster": "main"},
			userModelDocument(),
		},
	}}
	service := NewModelService(store, modelArguments(), zap.NewNop().Sugar())

	require.NoError(t, service.Refresh(context.Background()))
	assert.Len(t, service.Models(), 1)
}

func TestRefreshStoreFailureKeepsSnapshot(t *testing.T) {
	store := &fakeStore{documents: map[string][]bson.M{
		"main.cms.model": {userModelDocument()},
	}}
	service := NewModelService(store, modelArguments(), zap.NewNop().Sugar())
	require.NoError(t, service.Refresh(context.Background()))

	store.mu.Lock()
	store.findErr = errors.New("connection reset")
	store.mu.Unlock()

	require.Error(t, service.Refresh(context.Background()))

	_, err := service.GetModel("main", "cms", "user")
	assert.NoError(t, err)
}

func TestGetModelUnknown(t *testing.T) {
	service := NewModelService(&fakeStore{}, modelArguments(), zap.NewNop().Sugar())

	_, err := service.GetModel("main", "cms", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Contains(t, err.Error(), "main.cms.nope")
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	store := &fakeStore{documents: map[string][]bson.M{
		"main.cms.model": {userModelDocument()},
	}}
	service := NewModelService(store, modelArguments(), zap.NewNop().Sugar())
	require.NoError(t, service.Refresh(context.Background()))

	old := service.Models()

	other := userModelDocument()
	other["collection"] = "order"
	store.mu.Lock()
	store.documents["main.cms.model"] = []bson.M{other}
	store.mu.Unlock()

	require.NoError(t, service.Refresh(context.Background()))

	_, err := service.GetModel("main", "cms", "user")
	assert.ErrorIs(t, err, ErrModelNotFound)
	_, err = service.GetModel("main", "cms", "order")
	assert.NoError(t, err)

	// the snapshot handed out before the refresh is untouched
	assert.Contains(t, old, "main.cms.user")
}
