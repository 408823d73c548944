package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureUsersTable()
	ensureWalletsTable()
	ensureServicesTable()
	ensureTransactionsTable()
	ensureRatingsTable()
}

// ensureUsersTable creates the users table if missing
func ensureUsersTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'client' CHECK (role IN ('client','freelancer','admin')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to create users table: %v", err)
	}
}

// ensureWalletsTable creates the wallets table if missing
func ensureWalletsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
            balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to create wallets table: %v", err)
	}
}

// ensureServicesTable creates the services table and its id sequence.
// The sequence starts at 0 so the first listing gets id 0; ids are never
// reused even after a service reaches a terminal state.
func ensureServicesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE SEQUENCE IF NOT EXISTS services_id_seq MINVALUE 0 START WITH 0;
        CREATE TABLE IF NOT EXISTS services (
            id BIGINT PRIMARY KEY DEFAULT nextval('services_id_seq'),
            freelancer_id UUID NOT NULL REFERENCES users(id),
            client_id UUID NULL REFERENCES users(id),
            title TEXT NOT NULL,
            price BIGINT NOT NULL CHECK (price > 0),
            escrowed BIGINT NOT NULL DEFAULT 0 CHECK (escrowed >= 0),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            is_paid BOOLEAN NOT NULL DEFAULT FALSE,
            rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_services_freelancer ON services(freelancer_id);
    `)
	if err != nil {
		log.Printf("failed to create services table: %v", err)
	}
}

// ensureTransactionsTable creates the fund-movement log if missing
func ensureTransactionsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            amount BIGINT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('credit','debit')),
            status TEXT NOT NULL,
            reference TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to create transactions table: %v", err)
	}
}

// ensureRatingsTable creates the per-freelancer rating aggregate table,
// updated transactionally alongside the per-service rating.
func ensureRatingsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS freelancer_ratings (
            freelancer_id UUID PRIMARY KEY REFERENCES users(id),
            rating_sum BIGINT NOT NULL DEFAULT 0,
            rating_count BIGINT NOT NULL DEFAULT 0
        )`)
	if err != nil {
		log.Printf("failed to create freelancer_ratings table: %v", err)
	}
}
