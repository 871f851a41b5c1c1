package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Topics tracks per-channel notification audiences as redis sets. A user is
// in a channel's topic while they are a member with notifications enabled;
// DM channels never have a topic.
type Topics struct {
	client *redis.Client
}

func NewTopics(client *redis.Client) *Topics {
	return &Topics{client: client}
}

func topicKey(channelID uuid.UUID) string {
	return fmt.Sprintf("topic:members:%s", channelID.String())
}

func (t *Topics) Subscribe(ctx context.Context, channelID, userID uuid.UUID) error {
	return t.client.SAdd(ctx, topicKey(channelID), userID.String()).Err()
}

func (t *Topics) Unsubscribe(ctx context.Context, channelID, userID uuid.UUID) error {
	return t.client.SRem(ctx, topicKey(channelID), userID.String()).Err()
}

func (t *Topics) Members(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := t.client.SMembers(ctx, topicKey(channelID)).Result()
	if err != nil {
		return nil, err
	}

	members := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		members = append(members, id)
	}
	return members, nil
}

// Drop removes a channel's topic entirely, used when the channel is deleted
// or archived.
func (t *Topics) Drop(ctx context.Context, channelID uuid.UUID) error {
	return t.client.Del(ctx, topicKey(channelID)).Err()
}
