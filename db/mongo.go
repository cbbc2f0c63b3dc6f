package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Mongo *mongo.Client
var MongoDB *mongo.Database

// ConnectMongo opens the document store holding diaries and users.
func ConnectMongo() error {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		fmt.Println("MONGO_URI environment variable is not set")
		uri = "mongodb://localhost:27017"
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "maumon"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return err
	}

	Mongo = client
	MongoDB = client.Database(dbName)
	return nil
}

func CloseMongo() {
	if Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Mongo.Disconnect(ctx)
	}
}

func Diaries() *mongo.Collection {
	return MongoDB.Collection("diaries")
}

func Users() *mongo.Collection {
	return MongoDB.Collection("users")
}
