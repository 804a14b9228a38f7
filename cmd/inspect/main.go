// Command inspect prints the latest rows of the notification and
// integration tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/config"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/postgres"

	"github.com/jackc/pgx/v5"
)

func main() {
	user := flag.String("user", "", "only show rows of this user id")
	limit := flag.Int("limit", 5, "rows per section")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := cfg.Postgres
	conn, err := pgx.Connect(ctx, postgres.Config{
		Host:     pc.Host,
		Port:     pc.Port,
		User:     pc.User,
		Password: pc.Password,
		DBName:   pc.DBName,
	}.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var userFilter any
	if *user != "" {
		userFilter = *user
	}

	fmt.Println("--- Notifications ---")
	rows, err := conn.Query(ctx, `
		SELECT id, user_id, type, is_read, created_at FROM notifications
		WHERE $1::uuid IS NULL OR user_id = $1::uuid
		ORDER BY created_at DESC LIMIT $2`, userFilter, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query notifications: %v\n", err)
		os.Exit(1)
	}
	for rows.Next() {
		var id, userID, kind string
		var isRead bool
		var createdAt time.Time
		if err := rows.Scan(&id, &userID, &kind, &isRead, &createdAt); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			break
		}
		fmt.Printf("ID: %s | User: %s | Type: %s | Read: %t | Created: %s\n", id, userID, kind, isRead, createdAt.Format(time.RFC3339))
	}
	rows.Close()

	fmt.Println("\n--- Integrations ---")
	rows, err = conn.Query(ctx, `
		SELECT id, user_id, integration_type, is_active FROM integrations
		WHERE $1::uuid IS NULL OR user_id = $1::uuid
		ORDER BY created_at DESC LIMIT $2`, userFilter, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query integrations: %v\n", err)
		os.Exit(1)
	}
	for rows.Next() {
		var id, userID, kind string
		var active bool
		if err := rows.Scan(&id, &userID, &kind, &active); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			break
		}
		fmt.Printf("ID: %s | User: %s | Type: %s | Active: %t\n", id, userID, kind, active)
	}
	rows.Close()

	fmt.Println("\n--- Webhook logs ---")
	rows, err = conn.Query(ctx, `
		SELECT l.id, l.integration_id, l.event_type, l.status, COALESCE(l.error_message, '')
		FROM webhook_logs l JOIN integrations i ON i.id = l.integration_id
		WHERE $1::uuid IS NULL OR i.user_id = $1::uuid
		ORDER BY l.created_at DESC LIMIT $2`, userFilter, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query webhook logs: %v\n", err)
		os.Exit(1)
	}
	for rows.Next() {
		var id, integrationID, eventType, status, errMsg string
		if err := rows.Scan(&id, &integrationID, &eventType, &status, &errMsg); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			break
		}
		fmt.Printf("ID: %s | Integration: %s | Event: %s | Status: %s | Error: %s\n", id, integrationID, eventType, status, errMsg)
	}
	rows.Close()
}
