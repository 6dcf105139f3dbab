package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"cmsd/src/model"
)

// MongoStore is the document-store client behind the engine: one connection
// per configured cluster, addressed by cluster name in every call.
type MongoStore struct {
	clients map[string]*mongo.Client
	limit   int64
	logger  *zap.SugaredLogger
}

// NewMongoStore connects to every configured cluster. limit caps the result
// size of every find, whatever the caller asks for.
func NewMongoStore(ctx context.Context, clusterURIs map[string]string, limit int64, logger *zap.SugaredLogger) (*MongoStore, error) {
	clients := make(map[string]*mongo.Client, len(clusterURIs))
	for cluster, uri := range clusterURIs {
		opts := options.Client().
			ApplyURI(uri).
			SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to cluster %s: %w", cluster, err)
		}
		clients[cluster] = client
	}

	return &MongoStore{
		clients: clients,
		limit:   limit,
		logger:  logger,
	}, nil
}

// Disconnect closes every cluster connection.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	var firstErr error
	for cluster, client := range s.clients {
		if err := client.Disconnect(ctx); err != nil {
			s.logger.Errorw("failed to disconnect cluster", "cluster", cluster, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MongoStore) collection(cluster, database, collection string) (*mongo.Collection, error) {
	client, ok := s.clients[cluster]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCluster, cluster)
	}
	return client.Database(database).Collection(collection), nil
}

// Find runs a filtered read and materializes the cursor. The configured
// limit always applies unless opts ask for no limit at all.
func (s *MongoStore) Find(ctx context.Context, cluster, database, collection string, filter bson.M, getOptions *model.GetOptions) ([]bson.M, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.M{}
	}

	findOptions := options.Find()
	if getOptions != nil {
		if getOptions.Sort != "" {
			direction := getOptions.SortDirection
			if direction == 0 {
				direction = 1
			}
			findOptions.SetSort(bson.D{{Key: getOptions.Sort, Value: direction}})
		}
		if getOptions.Skip != nil {
			findOptions.SetSkip(*getOptions.Skip)
		}
	}
	switch {
	case getOptions != nil && getOptions.NoLimit:
		// unbounded by request
	case getOptions != nil && getOptions.Limit != nil && *getOptions.Limit < s.limit:
		findOptions.SetLimit(*getOptions.Limit)
	default:
		findOptions.SetLimit(s.limit)
	}

	cursor, err := coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find %s.%s.%s failed: %w", cluster, database, collection, err)
	}

	var documents []bson.M
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("reading cursor of %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return documents, nil
}

// InsertOne writes a new document.
func (s *MongoStore) InsertOne(ctx context.Context, cluster, database, collection string, document bson.M) error {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, document); err != nil {
		return fmt.Errorf("insert into %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return nil
}

// ReplaceOne replaces the document matching filter, optionally inserting it
// when absent.
func (s *MongoStore) ReplaceOne(ctx context.Context, cluster, database, collection string, filter, document bson.M, upsert bool) (int64, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return 0, err
	}
	result, err := coll.ReplaceOne(ctx, filter, document, options.Replace().SetUpsert(upsert))
	if err != nil {
		return 0, fmt.Errorf("replace in %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return result.ModifiedCount + result.UpsertedCount, nil
}

// UpdateOne applies an update document to the first match.
func (s *MongoStore) UpdateOne(ctx context.Context, cluster, database, collection string, filter, update bson.M) (int64, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return 0, err
	}
	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("update in %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return result.ModifiedCount, nil
}

// DeleteMany removes every document matching filter.
func (s *MongoStore) DeleteMany(ctx context.Context, cluster, database, collection string, filter bson.M) (int64, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return 0, err
	}
	result, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return result.DeletedCount, nil
}

// BulkWrite executes a mixed batch of writes in order.
func (s *MongoStore) BulkWrite(ctx context.Context, cluster, database, collection string, writes []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return nil, err
	}
	result, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return result, fmt.Errorf("bulk write to %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return result, nil
}

// CreateIndex ensures one index on the collection.
func (s *MongoStore) CreateIndex(ctx context.Context, cluster, database, collection string, index model.Index) error {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return err
	}

	indexOptions := options.Index()
	if index.Unique {
		indexOptions.SetUnique(true)
	}
	if index.Sparse {
		indexOptions.SetSparse(true)
	}
	if index.Name != "" {
		indexOptions.SetName(index.Name)
	}
	if index.Expires != nil {
		indexOptions.SetExpireAfterSeconds(*index.Expires)
	}

	keys := bson.D{}
	for key, value := range index.Keys {
		keys = append(keys, bson.E{Key: key, Value: value})
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: indexOptions}); err != nil {
		return fmt.Errorf("creating index on %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return nil
}

// EstimatedCount returns the collection's estimated document count.
func (s *MongoStore) EstimatedCount(ctx context.Context, cluster, database, collection string) (int64, error) {
	coll, err := s.collection(cluster, database, collection)
	if err != nil {
		return 0, err
	}
	count, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting %s.%s.%s failed: %w", cluster, database, collection, err)
	}
	return count, nil
}
