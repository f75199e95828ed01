// Migrate the database from one state to another
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4"

	"github.com/dense-analysis/pricetracker/internal/config"
	"github.com/dense-analysis/pricetracker/internal/database"
	"github.com/dense-analysis/pricetracker/internal/env"
)

type MigrationExecutor struct {
	connection        *pgx.Conn
	directoryName     string
	migrationFileList []string
}

func NewMigrationExecutor(connection *pgx.Conn, directoryName string) (*MigrationExecutor, error) {
	fileList, err := os.ReadDir(directoryName)

	if err != nil {
		return nil, err
	}

	migrationFileList := make([]string, 0, len(fileList))

	for _, file := range fileList {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFileList = append(migrationFileList, file.Name())
		}
	}

	return &MigrationExecutor{connection, directoryName, migrationFileList}, nil
}

func (executor *MigrationExecutor) CreateMigrationTable(ctx context.Context) error {
	_, err := executor.connection.Exec(
		ctx,
		"CREATE TABLE IF NOT EXISTS crypto_migration (id serial, migration_number integer NOT NULL UNIQUE);",
	)

	return err
}

func (executor *MigrationExecutor) CurrentMigration(ctx context.Context) (int, error) {
	row := executor.connection.QueryRow(
		ctx,
		"SELECT COALESCE(MAX(migration_number), 0) FROM crypto_migration;",
	)

	var migrationNumber int32
	err := row.Scan(&migrationNumber)

	return int(migrationNumber), err
}

// splitQueries splits a migration file into statements, skipping blank ones.
func splitQueries(content string) []string {
	// NOTE: SQL functions in migration files won't work.
	parts := strings.Split(content, ";\n")
	queries := make([]string, 0, len(parts))

	for _, part := range parts {
		if query := strings.TrimSpace(part); query != "" {
			queries = append(queries, query)
		}
	}

	return queries
}

func (executor *MigrationExecutor) applyMigration(ctx context.Context, migrationNumber int, reverse bool) (bool, error) {
	var matchedFilename string

	for _, filename := range executor.migrationFileList {
		splitList := strings.Split(filename, "_")
		fileMigrationNumber, _ := strconv.Atoi(splitList[0])
		isReverseFile := splitList[len(splitList)-1] == "reverse.sql"

		if migrationNumber == fileMigrationNumber && reverse == isReverseFile {
			matchedFilename = filepath.Join(executor.directoryName, filename)
			break
		}
	}

	if len(matchedFilename) == 0 {
		return true, nil
	}

	fmt.Printf("Applying migration: %s\n", matchedFilename)

	file, readErr := os.ReadFile(matchedFilename)

	if readErr != nil {
		return false, readErr
	}

	batch := &pgx.Batch{}

	for _, query := range splitQueries(string(file)) {
		batch.Queue(query)
	}

	if reverse {
		batch.Queue(
			"DELETE FROM crypto_migration WHERE migration_number = $1;",
			migrationNumber,
		)
	} else {
		batch.Queue(
			"INSERT INTO crypto_migration (migration_number) VALUES ($1) ON CONFLICT DO NOTHING;",
			migrationNumber,
		)
	}

	results := executor.connection.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return false, err
		}
	}

	return false, nil
}

func (executor *MigrationExecutor) ApplyMigrations(ctx context.Context, selectedMigrationNumber int) error {
	if err := executor.CreateMigrationTable(ctx); err != nil {
		return err
	}

	startMigrationNumber, currentErr := executor.CurrentMigration(ctx)

	if currentErr != nil {
		return currentErr
	}

	reverse := false

	if selectedMigrationNumber < startMigrationNumber {
		reverse = true
	}

	for i := startMigrationNumber; i != selectedMigrationNumber; {
		if !reverse {
			i += 1
		}

		stop, err := executor.applyMigration(ctx, i, reverse)

		if reverse {
			i -= 1
		}

		if err != nil {
			return err
		}

		if stop {
			break
		}
	}

	return nil
}

func parseSelectedMigration() int {
	selectedMigration := math.MaxInt32

	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Too many arguments\n")
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		var err error
		selectedMigration, err = strconv.Atoi(os.Args[1])

		if err != nil || selectedMigration < 0 {
			fmt.Fprintf(os.Stderr, "Invalid migration number: %s\n", os.Args[1])
			os.Exit(1)
		}
	}

	return selectedMigration
}

func main() {
	selectedMigration := parseSelectedMigration()
	env.LoadEnvironmentVariables()

	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, connectionErr := pgx.Connect(ctx, database.URL(cfg.Database))

	if connectionErr != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %s\n", connectionErr)
		os.Exit(1)
	}

	defer conn.Close(ctx)

	executor, executorErr := NewMigrationExecutor(conn, "migrations")

	if executorErr != nil {
		fmt.Fprintf(os.Stderr, "Error loading migrations: %s\n", executorErr)
		os.Exit(1)
	}

	if err := executor.ApplyMigrations(ctx, selectedMigration); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying migration: %s\n", err)
		os.Exit(1)
	}
}
