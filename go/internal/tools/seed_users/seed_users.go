package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knockouthq/knockout/go/internal/dbconfig"
)

// User mirrors the JSON snapshot structure
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func main() {
	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/users.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var (
		total    = len(users)
		inserted int
		skipped  int
		errs     int
	)

	for _, u := range users {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO users (id, username, email)
            VALUES ($1, $2, $3)
            ON CONFLICT (email) DO NOTHING`,
			u.ID, u.Username, u.Email,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "insert %s: %v\n", u.Email, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	fmt.Printf("seeded users: total=%d inserted=%d skipped=%d errors=%d\n", total, inserted, skipped, errs)
}
