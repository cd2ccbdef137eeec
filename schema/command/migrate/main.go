package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stl-inc/as-report-api/schema"
)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("asreport")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetDefault("mongo.database", "as-report")
}

// migrate creates the mongo indexes of the location and report collections.
// Firestore needs no setup.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := options.Client().ApplyURI(viper.GetString("mongo.conn"))
	opts.SetMaxPoolSize(1)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		panic(err)
	}
	defer client.Disconnect(ctx)

	database := viper.GetString("mongo.database")
	fmt.Println("indexing database", database)

	if err := schema.NewMongoDBIndexer(client, database).IndexAll(); err != nil {
		panic(err)
	}
}
