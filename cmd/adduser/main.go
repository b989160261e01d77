// cmd/adduser/main.go
// Creates an operator allowed to read the status API, or resets its password.
//
// Usage:
//
//	go run ./cmd/adduser -username ops -password 'long enough'
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/padraicbc/lottosync/config"
	bundb "github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/handlers"
	"github.com/padraicbc/lottosync/models"
)

func main() {
	username := flag.String("username", "", "operator name (required)")
	password := flag.String("password", "", "plain-text password, at least 8 characters (required)")
	flag.Parse()

	hash, err := handlers.HashPassword(*username, *password)
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.Load()
	db := bundb.Setup(&cfg.DBConfig, cfg.Debug)
	defer db.Close()

	ctx := context.Background()
	if err := bundb.CreateTables(ctx, db); err != nil {
		log.Fatal("create tables:", err)
	}

	op := &models.Operator{Username: *username, Password: hash}
	if err := bundb.NewStore(db).SaveOperator(ctx, op); err != nil {
		log.Fatal("save operator:", err)
	}

	fmt.Printf("operator %q saved\n", *username)
}
