package db

import (
	"database/sql"
	"fmt"
	"log"

	"pulsefm/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// CloseDB closes the raw connection pool.
func CloseDB() error {
	if DB == nil {
		return nil
	}
	return DB.Close()
}

// InitDB initializes the hand-managed schema. Tables owned by GORM are
// migrated separately via AutoMigrateModels.
func InitDB() error {
	if err := createPlayHistoryTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createPlayHistoryTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS play_history (
		track_id VARCHAR(128) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255),
		album VARCHAR(255),
		artwork_url VARCHAR(1024),
		played_at TIMESTAMP NOT NULL,
		INDEX idx_played_at (played_at)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create play_history table: %w", err)
	}
	log.Println("play_history table initialized successfully (or already exists).")
	return nil
}
