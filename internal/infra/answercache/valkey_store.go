package answercache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/obara/supportdesk/internal/domain/chat"
)

// ValkeyStore caches generated answers in a Valkey-compatible database so
// several replicas share one cache.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "faq"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements chat.AnswerStore.
func (s *ValkeyStore) Get(ctx context.Context, key string) (chat.AnswerRecord, bool, error) {
	if key == "" {
		return chat.AnswerRecord{}, false, nil
	}
	cmd := s.client.B().Get().Key(s.answerKey(key)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return chat.AnswerRecord{}, false, nil
		}
		return chat.AnswerRecord{}, false, err
	}
	var record chat.AnswerRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return chat.AnswerRecord{}, false, err
	}
	return record, true, nil
}

// Save implements chat.AnswerStore.
func (s *ValkeyStore) Save(ctx context.Context, record chat.AnswerRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.answerKey(record.Key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) answerKey(key string) string {
	return s.prefix + ":answer:" + key
}

var _ chat.AnswerStore = (*ValkeyStore)(nil)
