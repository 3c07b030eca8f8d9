package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/morpiondev/morpion-backend/internal/entity"
	"github.com/redis/go-redis/v9"
)

var ErrRecordNotFound = errors.New("game record not found")

// GameRecordRepository archives finished games. Records are write-once
// outcomes; nothing aggregates them into statistics.
type GameRecordRepository interface {
	CreateOrUpdate(ctx context.Context, record *entity.GameRecord) error
	GetByID(ctx context.Context, id string) (*entity.GameRecord, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbRecord struct {
	client *redis.Client
}

func NewGameRecordRepository(client *redis.Client) GameRecordRepository {
	return &dbRecord{
		client: client,
	}
}

func (that *dbRecord) CreateOrUpdate(ctx context.Context, record *entity.GameRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal game record: %w", err)
	}

	recordKey := "record:" + record.ID
	if err = that.client.Set(ctx, recordKey, recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set game record: %w", err)
	}

	return nil
}

func (that *dbRecord) GetByID(ctx context.Context, id string) (*entity.GameRecord, error) {
	recordKey := "record:" + id

	response, err := that.client.Get(ctx, recordKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game record by ID: %w", err)
	}

	var record entity.GameRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game record: %w", err)
	}

	return &record, nil
}

func (that *dbRecord) DeleteByID(ctx context.Context, id string) error {
	recordKey := "record:" + id

	if err := that.client.Del(ctx, recordKey).Err(); err != nil {
		return fmt.Errorf("failed to delete game record by ID: %w", err)
	}

	return nil
}
