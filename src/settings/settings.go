package settings

import (
	"strings"
	"sync"
	"time"
)

type Arguments struct {
	// Clusters maps cluster names to connection URIs, parsed from a
	// comma separated name=uri list.
	Clusters map[string]string

	// Coordinates of the collection holding the model documents
	ModelCluster    string
	ModelDatabase   string
	ModelCollection string

	// Key used by the one-way and two-way secret transforms
	SecretEncryptionKey string

	// How often the model snapshot is reloaded from the store
	ModelRefreshInterval time.Duration

	// Hard cap on the result size of any find
	FindLimit int64

	// Upper bound on concurrent relation lookups per document
	RelationConcurrency int

	// Strongly verbose logging
	Verbose bool

	Debug bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the singleton settings instance.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{
			Clusters: make(map[string]string),
		}
	})
	return instance
}

// ParseClusters fills Clusters from a "name=uri,name=uri" flag value.
func (a *Arguments) ParseClusters(list string) {
	if a.Clusters == nil {
		a.Clusters = make(map[string]string)
	}
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, uri, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		a.Clusters[strings.TrimSpace(name)] = strings.TrimSpace(uri)
	}
}
