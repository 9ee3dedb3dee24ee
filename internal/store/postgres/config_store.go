package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// ConfigStore implements domain.ConfigStore. Each GlobalConfig change is a
// new row keyed by version; the highest version is current.
type ConfigStore struct {
	db DBTX
}

// NewConfigStore creates a ConfigStore on db.
func NewConfigStore(db DBTX) *ConfigStore {
	return &ConfigStore{db: db}
}

// Latest returns the highest stored version, or domain.ErrNotFound before
// bootstrap.
func (s *ConfigStore) Latest(ctx context.Context) (domain.GlobalConfig, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM global_config_versions ORDER BY version DESC LIMIT 1`,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GlobalConfig{}, fmt.Errorf("postgres: global config: %w", domain.ErrNotFound)
		}
		return domain.GlobalConfig{}, fmt.Errorf("postgres: latest global config: %w", err)
	}

	var cfg domain.GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("postgres: unmarshal global config: %w", err)
	}
	return cfg, nil
}

// Insert stores cfg as a new version.
func (s *ConfigStore) Insert(ctx context.Context, cfg domain.GlobalConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: marshal global config: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO global_config_versions (version, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (version) DO NOTHING`,
		cfg.Version, data, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert global config v%d: %w", cfg.Version, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: global config v%d: %w", cfg.Version, domain.ErrAlreadyExists)
	}
	return nil
}

var _ domain.ConfigStore = (*ConfigStore)(nil)
