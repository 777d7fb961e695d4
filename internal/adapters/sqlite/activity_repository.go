package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feedforge/activitylog/internal/adapters/sqlite/gormdb"
	"github.com/feedforge/activitylog/internal/core/domain"
	"gorm.io/gorm"
)

type activityModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Action         string    `gorm:"column:action;not null"`
	Template       string    `gorm:"column:template;not null"`
	PropertiesJSON string    `gorm:"column:properties;not null"`
	OccurredAt     time.Time `gorm:"column:occurred_at;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (activityModel) TableName() string {
	return "activity_records"
}

type entityRefModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RecordID   string `gorm:"column:record_id;not null"`
	Role       string `gorm:"column:role;not null"`
	EntityType string `gorm:"column:entity_type;not null"`
	EntityID   string `gorm:"column:entity_id;not null"`
}

func (entityRefModel) TableName() string {
	return "activity_entity_refs"
}

// ActivityRepository persists activity records with their entity references.
// Refs live and die with their record: deleting a record cascades to its
// refs through the schema's foreign key.
type ActivityRepository struct {
	db *gormdb.DB
}

func NewActivityRepository(db *gormdb.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, rec domain.ActivityRecord) (domain.ActivityRecord, error) {
	props, err := encodeProperties(rec.Properties)
	if err != nil {
		return domain.ActivityRecord{}, err
	}

	now := time.Now().UTC()
	model := activityModel{
		ID:             rec.ID,
		Action:         rec.Action,
		Template:       rec.Template,
		PropertiesJSON: props,
		OccurredAt:     rec.OccurredAt.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert activity record: %w", err)
		}
		for _, ref := range rec.EntityRefs {
			refModel := entityRefModel{
				RecordID:   rec.ID,
				Role:       ref.Role,
				EntityType: ref.Entity.Type,
				EntityID:   ref.Entity.ID,
			}
			if err := tx.Create(&refModel).Error; err != nil {
				return fmt.Errorf("insert entity ref: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.ActivityRecord{}, err
	}

	return r.Get(ctx, rec.ID)
}

func (r *ActivityRepository) Get(ctx context.Context, id string) (domain.ActivityRecord, error) {
	var model activityModel
	var refs []entityRefModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}
		return tx.Where("record_id = ?", id).Order("id ASC").Find(&refs).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ActivityRecord{}, domain.ErrNotFound
		}
		return domain.ActivityRecord{}, fmt.Errorf("get activity record: %w", err)
	}

	return toDomain(model, refs)
}

func (r *ActivityRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityRecord, error) {
	var models []activityModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&activityModel{})
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if !filter.Before.IsZero() {
			query = query.Where("occurred_at < ?", filter.Before.UTC())
		}
		if filter.Property.Path != "" {
			jsonPath := dotPathToJSONPath(filter.Property.Path)
			switch filter.Property.Op {
			case "eq", "":
				query = query.Where("CAST(json_extract(properties, ?) AS TEXT) = ?", jsonPath, filter.Property.Value)
			case "contains":
				query = query.Where("instr(lower(CAST(json_extract(properties, ?) AS TEXT)), lower(?)) > 0", jsonPath, filter.Property.Value)
			case "exists":
				query = query.Where("json_type(properties, ?) IS NOT NULL", jsonPath)
			default:
				return domain.ErrInvalidFilter
			}
		}
		return query.Order("occurred_at DESC, id DESC").Limit(filter.Limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}

	records := make([]domain.ActivityRecord, 0, len(models))
	for _, model := range models {
		var refs []entityRefModel
		err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
			return tx.Where("record_id = ?", model.ID).Order("id ASC").Find(&refs).Error
		})
		if err != nil {
			return nil, fmt.Errorf("load entity refs: %w", err)
		}
		rec, err := toDomain(model, refs)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateProperties merges props into the stored properties document. Keys
// are added or overwritten, never removed.
func (r *ActivityRepository) UpdateProperties(ctx context.Context, id string, props map[string]any) (domain.ActivityRecord, error) {
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		var model activityModel
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}

		merged, err := decodeProperties(model.PropertiesJSON)
		if err != nil {
			return err
		}
		for k, v := range props {
			merged[k] = v
		}
		encoded, err := encodeProperties(merged)
		if err != nil {
			return err
		}

		return tx.Model(&activityModel{}).Where("id = ?", id).Updates(map[string]any{
			"properties": encoded,
			"updated_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ActivityRecord{}, domain.ErrNotFound
		}
		return domain.ActivityRecord{}, fmt.Errorf("update activity properties: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *ActivityRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		res := tx.Where("id = ?", id).Delete(&activityModel{})
		if res.Error != nil {
			return fmt.Errorf("delete activity record: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func toDomain(model activityModel, refs []entityRefModel) (domain.ActivityRecord, error) {
	props, err := decodeProperties(model.PropertiesJSON)
	if err != nil {
		return domain.ActivityRecord{}, err
	}

	entityRefs := make([]domain.EntityRef, 0, len(refs))
	for _, ref := range refs {
		entityRefs = append(entityRefs, domain.EntityRef{
			Role:   ref.Role,
			Entity: domain.EntityKey{Type: ref.EntityType, ID: ref.EntityID},
		})
	}

	return domain.ActivityRecord{
		ID:         model.ID,
		Action:     model.Action,
		Template:   model.Template,
		Properties: props,
		EntityRefs: entityRefs,
		OccurredAt: model.OccurredAt,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

func encodeProperties(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}

func decodeProperties(raw string) (map[string]any, error) {
	props := map[string]any{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return props, nil
}

func dotPathToJSONPath(path string) string {
	segments := domain.SplitPropertyPath(path)
	jsonPath := "$"
	for _, seg := range segments {
		jsonPath += "." + seg
	}
	return jsonPath
}
