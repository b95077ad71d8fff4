package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"venue-booking-backend/internal/model"
	"venue-booking-backend/internal/reminder"
)

var errEmptyKey = errors.New("empty key")

// GormKV keeps reminder records in the reminder_records table.
type GormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (kv *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errEmptyKey
	}
	var rec model.ReminderRecord
	err := kv.db.WithContext(ctx).Where(&model.ReminderRecord{Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return rec.Value, true, nil
}

func (kv *GormKV) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errEmptyKey
	}
	rec := model.ReminderRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	err := kv.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (kv *GormKV) Remove(ctx context.Context, key string) error {
	if key == "" {
		return errEmptyKey
	}
	if err := kv.db.WithContext(ctx).Where(&model.ReminderRecord{Key: key}).Delete(&model.ReminderRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// MongoKV keeps reminder records as {_id: key, value, updatedAt} documents.
type MongoKV struct {
	collection *mongo.Collection
}

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func NewMongoKV(db *mongo.Database, collection string) *MongoKV {
	return &MongoKV{collection: db.Collection(collection)}
}

func (kv *MongoKV) Get(ctx context.Context, key string) (string, bool, error) {
	var doc kvDocument
	err := kv.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (kv *MongoKV) Set(ctx context.Context, key, value string) error {
	update := bson.M{
		"$set": bson.M{
			"value":     value,
			"updatedAt": time.Now(),
		},
	}
	_, err := kv.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (kv *MongoKV) Remove(ctx context.Context, key string) error {
	if _, err := kv.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

var (
	_ reminder.KeyValue = (*GormKV)(nil)
	_ reminder.KeyValue = (*MongoKV)(nil)
)
