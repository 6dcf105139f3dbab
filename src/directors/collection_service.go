package directors

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"cmsd/src/engine"
	"cmsd/src/helpers"
	"cmsd/src/model"
)

// CollectionStore is what the collection service needs from the store.
type CollectionStore interface {
	Find(ctx context.Context, cluster, database, collection string, filter bson.M, opts *model.GetOptions) ([]bson.M, error)
	InsertOne(ctx context.Context, cluster, database, collection string, document bson.M) error
	ReplaceOne(ctx context.Context, cluster, database, collection string, filter, document bson.M, upsert bool) (int64, error)
	UpdateOne(ctx context.Context, cluster, database, collection string, filter, update bson.M) (int64, error)
	DeleteMany(ctx context.Context, cluster, database, collection string, filter bson.M) (int64, error)
	BulkWrite(ctx context.Context, cluster, database, collection string, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error)
	EstimatedCount(ctx context.Context, cluster, database, collection string) (int64, error)
}

// CollectionService drives documents through the engine pipeline and decides
// what to do with the findings: documents with validation errors are not
// persisted, everything the engine annotated is handed back to the caller.
type CollectionService struct {
	store     CollectionStore
	models    *ModelService
	codec     *engine.Codec
	validator *engine.Validator
	resolver  *engine.Resolver
	changes   *engine.ChangeFinder
	logger    *zap.SugaredLogger
}

func NewCollectionService(
	store CollectionStore,
	models *ModelService,
	codec *engine.Codec,
	validator *engine.Validator,
	resolver *engine.Resolver,
	changes *engine.ChangeFinder,
	logger *zap.SugaredLogger,
) *CollectionService {
	return &CollectionService{
		store:     store,
		models:    models,
		codec:     codec,
		validator: validator,
		resolver:  resolver,
		changes:   changes,
		logger:    logger,
	}
}

// Get reads documents and runs the outbound pipeline over each one:
// validate, resolve relations and virtuals, encode for the wire. The meta of
// every stage is attached under the reserved meta key.
func (s *CollectionService) Get(ctx context.Context, cluster, database, collection string, filter bson.M, opts *model.GetOptions) ([]bson.M, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return nil, err
	}

	filter, err = s.codec.FromWire(filter, m)
	if err != nil {
		return nil, err
	}

	documents, err := s.store.Find(ctx, cluster, database, collection, filter, opts)
	if err != nil {
		return nil, err
	}

	metas := s.validator.Validate(documents, m)
	for i, document := range documents {
		if err := s.resolver.Resolve(ctx, document, m, metas[i]); err != nil {
			return nil, fmt.Errorf("resolving relations of %s.%s.%s failed: %w", cluster, database, collection, err)
		}
	}

	for i, document := range documents {
		documents[i] = s.codec.ToWire(document, m)
		if !metas[i].IsEmpty() {
			documents[i][model.MetaKey] = metas[i].Document()
		}
	}
	return documents, nil
}

// Post decodes and validates a batch and inserts the documents that came
// through clean. The metas tell the caller what happened to each document.
func (s *CollectionService) Post(ctx context.Context, cluster, database, collection string, documents []bson.M) ([]*model.Meta, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return nil, err
	}
	opID := helpers.GenerateUUID()

	for i, document := range documents {
		if documents[i], err = s.codec.FromWire(document, m); err != nil {
			return nil, err
		}
	}

	metas := s.validator.Validate(documents, m)
	inserted := 0
	for i, document := range documents {
		if metas[i].NumErrors() > 0 {
			s.logger.Warnw("skipping invalid document", "op", opID, "collection", m.Key(), "errors", metas[i].NumErrors())
			continue
		}
		if err := s.store.InsertOne(ctx, cluster, database, collection, document); err != nil {
			return metas, err
		}
		inserted++
	}

	s.logger.Infow("post finished", "op", opID, "collection", m.Key(), "received", len(documents), "inserted", inserted)
	return metas, nil
}

// Put replaces the single document matching filter, optionally inserting it.
// An invalid document is not written, only reported.
func (s *CollectionService) Put(ctx context.Context, cluster, database, collection string, filter, document bson.M, upsert bool) (*model.Meta, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return nil, err
	}

	if filter, err = s.codec.FromWire(filter, m); err != nil {
		return nil, err
	}
	if document, err = s.codec.FromWire(document, m); err != nil {
		return nil, err
	}

	metas := s.validator.Validate([]bson.M{document}, m)
	meta := metas[0]
	if meta.NumErrors() > 0 {
		return meta, nil
	}

	if _, err := s.store.ReplaceOne(ctx, cluster, database, collection, filter, document, upsert); err != nil {
		return meta, err
	}
	return meta, nil
}

// Patch applies the decoded fields of update to the first document matching
// filter. Invalid values are not written, only reported.
func (s *CollectionService) Patch(ctx context.Context, cluster, database, collection string, filter, update bson.M) (*model.Meta, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return nil, err
	}

	if filter, err = s.codec.FromWire(filter, m); err != nil {
		return nil, err
	}
	if update, err = s.codec.FromWire(update, m); err != nil {
		return nil, err
	}

	meta := &model.Meta{}
	for name, value := range update {
		s.validator.CheckValue(m.FindField(name), name, value, meta)
	}
	if meta.NumErrors() > 0 {
		return meta, nil
	}

	if _, err := s.store.UpdateOne(ctx, cluster, database, collection, filter, bson.M{"$set": update}); err != nil {
		return meta, err
	}
	return meta, nil
}

// Upload decodes and validates a batch, diffs it against the persisted
// documents, and bulk writes the clean ones: new composite ids as inserts,
// existing ones as replacements.
func (s *CollectionService) Upload(ctx context.Context, cluster, database, collection string, documents []bson.M) ([]*model.Meta, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return nil, err
	}
	opID := helpers.GenerateUUID()

	for i, document := range documents {
		if documents[i], err = s.codec.FromWire(document, m); err != nil {
			return nil, err
		}
	}

	metas := s.validator.Validate(documents, m)
	if err := s.changes.FindValidationChanges(ctx, documents, m, metas); err != nil {
		return metas, err
	}

	idFields := m.IDFields()
	var writes []mongo.WriteModel
	for i, document := range documents {
		if metas[i].NumErrors() > 0 {
			s.logger.Warnw("skipping invalid document", "op", opID, "collection", m.Key(), "errors", metas[i].NumErrors())
			continue
		}
		if len(idFields) == 0 || len(metas[i].UploadResults[model.UploadInsert]) > 0 {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(document))
			continue
		}
		filter := bson.M{}
		for _, field := range idFields {
			filter[field.Name] = document[field.Name]
		}
		writes = append(writes, mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(document).SetUpsert(true))
	}

	if len(writes) > 0 {
		if _, err := s.store.BulkWrite(ctx, cluster, database, collection, writes); err != nil {
			return metas, err
		}
	}

	s.logger.Infow("upload finished", "op", opID, "collection", m.Key(), "received", len(documents), "written", len(writes))
	return metas, nil
}

// Count returns the collection's estimated document count.
func (s *CollectionService) Count(ctx context.Context, cluster, database, collection string) (int64, error) {
	if _, err := s.models.GetModel(cluster, database, collection); err != nil {
		return 0, err
	}
	return s.store.EstimatedCount(ctx, cluster, database, collection)
}

// Delete removes every document matching filter.
func (s *CollectionService) Delete(ctx context.Context, cluster, database, collection string, filter bson.M) (int64, error) {
	m, err := s.models.GetModel(cluster, database, collection)
	if err != nil {
		return 0, err
	}

	filter, err = s.codec.FromWire(filter, m)
	if err != nil {
		return 0, err
	}
	return s.store.DeleteMany(ctx, cluster, database, collection, filter)
}
