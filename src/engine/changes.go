package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"cmsd/src/model"
	"cmsd/src/secrets"
)

// ChangeFinder diffs incoming documents against their persisted versions so
// an upload can show what it is about to do before anything is written.
type ChangeFinder struct {
	store     Finder
	secretKey string
	logger    *zap.SugaredLogger
}

func NewChangeFinder(store Finder, secretKey string, logger *zap.SugaredLogger) *ChangeFinder {
	return &ChangeFinder{
		store:     store,
		secretKey: secretKey,
		logger:    logger,
	}
}

// FindValidationChanges looks up every document's persisted version by its
// composite id and records the outcome into the document's meta: documents
// without a persisted version land in the insert partition, differing fields
// of existing documents land in the update partition. Store failures are
// fatal and propagate, they are never folded into meta.
func (c *ChangeFinder) FindValidationChanges(ctx context.Context, documents []bson.M, m *model.Model, metas []*model.Meta) error {
	idFields := m.IDFields()
	if len(idFields) == 0 {
		return nil
	}

	for i, document := range documents {
		if document == nil {
			continue
		}
		meta := metas[i]

		filter := bson.M{}
		for _, field := range idFields {
			filter[field.Name] = document[field.Name]
		}

		existing, err := c.store.Find(ctx, m.Cluster, m.Database, m.Collection, filter, (model.GetOptions{}).WithLimit(1))
		if err != nil {
			return fmt.Errorf("lookup of existing document failed: %w", err)
		}
		if len(existing) == 0 {
			meta.AddUploadResult(model.UploadInsert, idKey(idFields), "does not exist, will be inserted")
			continue
		}

		c.diff(document, c.decryptSecrets(existing[0], m), m, meta)
	}
	return nil
}

// decryptSecrets restores the comparable plaintext of the persisted
// document's two-way encrypted fields. One-way fields stay hashed, they are
// never comparable by value.
func (c *ChangeFinder) decryptSecrets(document bson.M, m *model.Model) bson.M {
	for name, value := range document {
		if m.FindField(name).Encryption != model.EncryptionTwoWay {
			continue
		}
		plain, err := secrets.DecryptTwoWay(canonicalString(value), c.secretKey)
		if err != nil {
			c.logger.Warnw("failed to decrypt persisted field", "field", name, "error", err)
			continue
		}
		document[name] = plain
	}
	return document
}

// diff compares old and new over the union of their keys and records every
// difference into the update partition.
func (c *ChangeFinder) diff(document, existing bson.M, m *model.Model, meta *model.Meta) {
	keys := make(map[string]bool, len(document)+len(existing))
	for name := range document {
		keys[name] = true
	}
	for name := range existing {
		keys[name] = true
	}
	delete(keys, model.MetaKey)

	for name := range keys {
		field := m.FindField(name)
		if field.IgnoreValidationChanges || field.Virtual != "" || field.Relation != nil {
			continue
		}

		newValue, inNew := document[name]
		oldValue := existing[name]

		if field.Encryption == model.EncryptionOneWay {
			// rehashing never reproduces the stored hash
			if inNew {
				meta.AddUploadResult(model.UploadUpdate, name, "always changes")
			}
			continue
		}

		if !valuesEqual(field, oldValue, newValue) {
			meta.AddUploadResult(model.UploadUpdate, name,
				fmt.Sprintf("'%s' -> '%s'", canonicalString(oldValue), canonicalString(newValue)))
		}
	}
}

// valuesEqual compares by canonical string for scalar fields, so the same
// number held as int32, int64 or Decimal128 never reports a change, and
// structurally for documents and lists.
func valuesEqual(field model.Field, oldValue, newValue interface{}) bool {
	switch field.EffectiveType() {
	case model.TypeJSON, model.TypeArray, model.TypeGeoJSON:
		return reflect.DeepEqual(oldValue, newValue)
	default:
		return canonicalString(oldValue) == canonicalString(newValue)
	}
}

// idKey names the composite id in meta entries that are not about a single
// field.
func idKey(idFields []model.Field) string {
	if len(idFields) == 1 {
		return idFields[0].Name
	}
	names := make([]string, len(idFields))
	for i, field := range idFields {
		names[i] = field.Name
	}
	return strings.Join(names, ",")
}
