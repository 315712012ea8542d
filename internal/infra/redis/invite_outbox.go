package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"partner-quiz-service/internal/domain"
)

// OutboxKey is the list a mail worker drains to deliver invitations.
const OutboxKey = "invites:outbox"

// InviteOutbox is a Notifier that queues invitations on a Redis list.
// Delivery itself happens outside this service.
type InviteOutbox struct {
	client *redis.Client
	key    string
}

func NewInviteOutbox(client *redis.Client) *InviteOutbox {
	return &InviteOutbox{client: client, key: OutboxKey}
}

func (o *InviteOutbox) SendInvite(ctx context.Context, invite domain.Invite) error {
	raw, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("encode invite: %w", err)
	}
	if err := o.client.RPush(ctx, o.key, raw).Err(); err != nil {
		return fmt.Errorf("queue invite: %w", err)
	}
	return nil
}

// Pending returns the queued invitations without removing them.
func (o *InviteOutbox) Pending(ctx context.Context) ([]domain.Invite, error) {
	items, err := o.client.LRange(ctx, o.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	invites := make([]domain.Invite, 0, len(items))
	for _, item := range items {
		var inv domain.Invite
		if err := json.Unmarshal([]byte(item), &inv); err != nil {
			return nil, fmt.Errorf("decode invite: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, nil
}
