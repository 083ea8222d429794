package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/ncobase/spacearc/data/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newMongoClient creates a new MongoDB client
func newMongoClient(conf *config.MongoNode) (*mongo.Client, error) {
	if conf == nil || conf.URI == "" {
		return nil, errors.New("mongodb configuration is nil or empty")
	}

	clientOptions := options.Client().ApplyURI(conf.URI)

	client, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("MongoDB connect error: %v", err)
	}
	if err := client.Ping(context.Background(), nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping error: %v", err)
	}

	return client, nil
}
