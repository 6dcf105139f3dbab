package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cmsd/src/directors"
	"cmsd/src/engine"
	"cmsd/src/settings"
	"cmsd/src/store"
)

// printUsage prints helpful usage information
func printUsage() {
	log.Println("cmsd - a model driven document store front end")
	log.Println("\nUsage:")
	log.Println("  cmsd [options]")
	log.Println("\nOptions:")
	flag.PrintDefaults()

	log.Println("\nExamples:")
	log.Println("  cmsd --clusters=main=mongodb://localhost:27017 --secretkey=changeme")
}

func main() {
	args := settings.GetSettings()

	var clusters string
	flag.StringVar(&clusters, "clusters", "main=mongodb://localhost:27017", "Comma separated name=uri cluster connections")
	flag.StringVar(&args.ModelCluster, "modelcluster", "main", "Cluster holding the model collection")
	flag.StringVar(&args.ModelDatabase, "modeldb", "cms", "Database holding the model collection")
	flag.StringVar(&args.ModelCollection, "modelcollection", "model", "Collection holding the model documents")
	flag.StringVar(&args.SecretEncryptionKey, "secretkey", "", "Key for one-way and two-way secret fields")
	flag.DurationVar(&args.ModelRefreshInterval, "modelrefresh", 5*time.Minute, "Model snapshot refresh interval")
	flag.Int64Var(&args.FindLimit, "findlimit", 1000, "Hard cap on find result size")
	flag.IntVar(&args.RelationConcurrency, "relationconcurrency", 4, "Concurrent relation lookups per document")
	flag.BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&args.Debug, "debug", false, "Enable debug mode")

	flag.Parse()
	args.ParseClusters(clusters)

	if err := validateArguments(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		printUsage()
		os.Exit(1)
	}

	logger, err := newLogger(args)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoStore, err := store.NewMongoStore(ctx, args.Clusters, args.FindLimit, sugar)
	if err != nil {
		sugar.Fatalf("Failed to connect to the store: %v", err)
	}

	modelService := directors.NewModelService(mongoStore, args, sugar)

	codec := engine.NewCodec(args.SecretEncryptionKey, sugar)
	validator := engine.NewValidator(sugar)
	resolver := engine.NewResolver(mongoStore, args.RelationConcurrency, sugar)
	changes := engine.NewChangeFinder(mongoStore, args.SecretEncryptionKey, sugar)

	collectionService := directors.NewCollectionService(mongoStore, modelService, codec, validator, resolver, changes, sugar)
	directors.InitServiceManager(modelService, collectionService, sugar)

	if err := modelService.Start(ctx); err != nil {
		sugar.Fatalf("Failed to load models: %v", err)
	}

	sugar.Infow("cmsd started",
		"clusters", len(args.Clusters),
		"models", len(modelService.Models()),
	)

	// Handle graceful shutdown
	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)

	<-shutdownSignal
	sugar.Info("shutting down")

	modelService.Stop()
	cancel()

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer disconnectCancel()
	if err := mongoStore.Disconnect(disconnectCtx); err != nil {
		sugar.Errorf("Error disconnecting from the store: %v", err)
	}
}

// newLogger builds the process logger from the arguments
func newLogger(args *settings.Arguments) (*zap.Logger, error) {
	if args.Debug {
		// Development configuration with more verbose output
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		return z.Build()
	}
	// Production configuration, opened up to debug level when verbose
	z := zap.NewProductionConfig()
	if args.Verbose {
		z.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return z.Build()
}

// validateArguments validates the arguments and returns an error if invalid
func validateArguments(args *settings.Arguments) error {
	if len(args.Clusters) == 0 {
		return fmt.Errorf("at least one cluster connection is required")
	}
	if _, ok := args.Clusters[args.ModelCluster]; !ok {
		return fmt.Errorf("model cluster %q has no configured connection", args.ModelCluster)
	}
	if args.SecretEncryptionKey == "" {
		return fmt.Errorf("a secret encryption key is required")
	}
	if args.FindLimit < 1 {
		return fmt.Errorf("invalid find limit: %d", args.FindLimit)
	}
	return nil
}
