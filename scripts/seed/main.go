// Command seed provisions the initial admin account so a fresh deployment
// can log in and start creating classes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulafit/checkin-api/pkg/config"
	"github.com/aulafit/checkin-api/pkg/database"
)

func main() {
	login := flag.String("login", "admin", "login for the admin account")
	password := flag.String("password", "", "password for the admin account (required)")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -login admin -password <password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Database.Name); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	const query = `INSERT INTO users (id, login, password_hash, role, remaining_classes, active, created_at, updated_at)
        VALUES ($1, $2, $3, 'ADMIN', 0, TRUE, $4, $4)
        ON CONFLICT (login) DO NOTHING`
	res, err := db.ExecContext(ctx, query, uuid.NewString(), *login, string(hash), now)
	if err != nil {
		log.Fatalf("insert admin: %v", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		log.Fatalf("insert admin: %v", err)
	}
	if rows == 0 {
		log.Printf("admin %q already exists, nothing to do", *login)
		return
	}
	log.Printf("admin %q created", *login)
}
