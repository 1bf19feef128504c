package blocklist

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dolos-sec/dolos/internal/models"
)

// GormStore persists block records in the application database so blocks
// survive restarts.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the provided DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func toModel(rec Record) models.BlockRecord {
	return models.BlockRecord{
		UUID:       uuid.NewString(),
		Address:    rec.Address,
		BlockedAt:  rec.BlockedAt,
		ExpiresAt:  rec.ExpiresAt,
		Reason:     rec.Reason,
		Actor:      rec.Actor,
		AttackType: rec.AttackType,
		Severity:   rec.Severity,
	}
}

func fromModel(m models.BlockRecord) Record {
	return Record{
		Address:    m.Address,
		BlockedAt:  m.BlockedAt,
		ExpiresAt:  m.ExpiresAt,
		Reason:     m.Reason,
		Actor:      m.Actor,
		AttackType: m.AttackType,
		Severity:   m.Severity,
	}
}

func (g *GormStore) Put(rec Record) error {
	m := toModel(rec)
	// Upsert keyed on address: a re-block overwrites the previous record.
	return g.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"blocked_at", "expires_at", "reason", "actor", "attack_type", "severity", "updated_at",
		}),
	}).Create(&m).Error
}

func (g *GormStore) Get(address string) (Record, error) {
	var m models.BlockRecord
	if err := g.db.Where("address = ?", address).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return fromModel(m), nil
}

func (g *GormStore) Delete(address string) (bool, error) {
	res := g.db.Where("address = ?", address).Delete(&models.BlockRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *GormStore) List() ([]Record, error) {
	var ms []models.BlockRecord
	if err := g.db.Order("blocked_at desc").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ms))
	for _, m := range ms {
		out = append(out, fromModel(m))
	}
	return out, nil
}
