package repositories

import (
	"context"

	"tablet-tracker/internal/models"
)

type SystemSettingRepository struct {
	DB Querier
}

func NewSystemSettingRepository(db Querier) *SystemSettingRepository {
	return &SystemSettingRepository{DB: db}
}

func (r *SystemSettingRepository) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	query := `
		SELECT id, setting_key, setting_value, COALESCE(description, ''), updated_at, COALESCE(updated_by, '')
		FROM system_settings
		WHERE setting_key = $1
	`

	setting := &models.SystemSetting{}
	err := r.DB.QueryRow(ctx, query, key).Scan(
		&setting.ID,
		&setting.SettingKey,
		&setting.SettingValue,
		&setting.Description,
		&setting.UpdatedAt,
		&setting.UpdatedBy,
	)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "setting", ID: key}
	}
	if err != nil {
		return nil, err
	}

	return setting, nil
}

func (r *SystemSettingRepository) ListSettings(ctx context.Context) ([]*models.SystemSetting, error) {
	query := `
		SELECT id, setting_key, setting_value, COALESCE(description, ''), updated_at, COALESCE(updated_by, '')
		FROM system_settings
		ORDER BY setting_key
	`

	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*models.SystemSetting
	for rows.Next() {
		setting := &models.SystemSetting{}
		err := rows.Scan(
			&setting.ID,
			&setting.SettingKey,
			&setting.SettingValue,
			&setting.Description,
			&setting.UpdatedAt,
			&setting.UpdatedBy,
		)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}

	return settings, rows.Err()
}

// UpsertSetting creates a new setting or updates an existing one. An empty
// description keeps the stored one.
func (r *SystemSettingRepository) UpsertSetting(ctx context.Context, key, value, description, updatedBy string) error {
	query := `
		INSERT INTO system_settings (setting_key, setting_value, description, updated_at, updated_by)
		VALUES ($1, $2, NULLIF($3, ''), CURRENT_TIMESTAMP, $4)
		ON CONFLICT (setting_key)
		DO UPDATE SET setting_value = $2,
		              description = COALESCE(NULLIF($3, ''), system_settings.description),
		              updated_at = CURRENT_TIMESTAMP,
		              updated_by = $4
	`

	_, err := r.DB.Exec(ctx, query, key, value, description, updatedBy)
	return err
}
