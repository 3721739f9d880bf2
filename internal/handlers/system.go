package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MigrationsDir holds the schema files applied by InstallDatabase
var MigrationsDir = "migrations"

// InstallDatabase applies the schema of every bound SQL store
// @Summary Install Database Schema
// @Description Creates the Postgres KV tables and the ClickHouse accuracy table
// @Tags System
// @Produce json
// @Security APIKey
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]interface{}
// @Router /system/install [post]
func (h *Handler) InstallDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results := make(map[string]string)
	hasError := false

	if h.pg != nil {
		path := filepath.Join(MigrationsDir, "postgres", "001_kv_store.sql")
		if err := h.executePostgresSQL(ctx, path); err != nil {
			results["postgres"] = "failed"
			hasError = true
		} else {
			results["postgres"] = "success"
		}
	} else {
		results["postgres"] = "skipped"
	}

	if h.ch != nil {
		path := filepath.Join(MigrationsDir, "clickhouse", "001_prediction_accuracy.sql")
		if err := h.executeClickHouseSQL(ctx, path); err != nil {
			results["clickhouse"] = "failed"
			hasError = true
		} else {
			results["clickhouse"] = "success"
		}
	} else {
		results["clickhouse"] = "skipped"
	}

	statusCode := http.StatusOK
	if hasError {
		statusCode = http.StatusInternalServerError
	}

	h.jsonResponse(w, statusCode, map[string]interface{}{
		"status":  "completed",
		"results": results,
		"error":   hasError,
	})
}

// executePostgresSQL runs a whole SQL file on Postgres
func (h *Handler) executePostgresSQL(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		h.logger.Errorw("failed to read schema file", "db", "PostgreSQL", "path", path, "error", err)
		return err
	}

	if _, err := h.pg.Exec(ctx, string(content)); err != nil {
		h.logger.Errorw("failed to execute schema", "db", "PostgreSQL", "error", err)
		return err
	}

	h.logger.Infow("successfully installed schema", "db", "PostgreSQL")
	return nil
}

// executeClickHouseSQL runs a SQL file on ClickHouse one statement at a time
func (h *Handler) executeClickHouseSQL(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		h.logger.Errorw("failed to read schema file", "db", "ClickHouse", "path", path, "error", err)
		return err
	}

	for _, stmt := range strings.Split(string(content), ";") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if err := h.ch.Exec(ctx, trimmed); err != nil {
			h.logger.Warnw("statement execution failed", "db", "ClickHouse", "error", err, "statement", trimmed[:min(len(trimmed), 50)]+"...")
			return err
		}
	}

	h.logger.Infow("successfully installed schema", "db", "ClickHouse")
	return nil
}
