package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed files.sql
var filesSQL string

// Function lists for verification
var FilesFunctions = []string{
	"init_files",
	"insert_file",
	"select_file",
	"select_file_by_file_id",
	"delete_file",
	"insert_file_chunk",
	"select_file_chunks",
	"select_file_chunks_by_similarity",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadFilesSql loads file-related SQL functions
func LoadFilesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, FilesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing files functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(filesSQL)
	if err != nil {
		return fmt.Errorf("error executing files SQL: %w", err)
	}

	exist, err := checkFunctions(db, FilesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL files functions loaded successfully")
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
