package redisstore

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"backoffice/internal/store"
)

const DefaultKeyPrefix = "vendas_app_data_"

// Store keeps each slot under its own string key, <prefix><slot>.
type Store struct {
	client *redis.Client
	prefix string
}

func New(addr string, password string, db int, prefix string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(client, prefix)
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Key(slot store.Slot) string {
	return s.prefix + string(slot)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Load(ctx context.Context, slot store.Slot) ([]byte, error) {
	if !slot.Valid() {
		return nil, store.ErrInvalidSlot
	}

	payload, err := s.client.Get(ctx, s.Key(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Key(slot), err)
	}
	return payload, nil
}

// SaveAll writes the slots inside one MULTI/EXEC block.
func (s *Store) SaveAll(ctx context.Context, payloads map[store.Slot][]byte) error {
	for slot := range payloads {
		if !slot.Valid() {
			return store.ErrInvalidSlot
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, slot := range store.Slots() {
			payload, ok := payloads[slot]
			if !ok {
				continue
			}
			pipe.Set(ctx, s.Key(slot), payload, 0)
		}
		return nil
	})
	return err
}
