package redis

import (
	"context"
	"fmt"
)

const revokedSetKey = "parley:revoked_tokens"

// RevocationStore persists revoked token IDs in a Redis set.
type RevocationStore struct {
	client *Client
}

// NewRevocationStore creates a RevocationStore.
func NewRevocationStore(client *Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Load returns every revoked token ID.
func (s *RevocationStore) Load(ctx context.Context) ([]string, error) {
	ids, err := s.client.rdb.SMembers(ctx, revokedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load revocations: %w", err)
	}
	return ids, nil
}

// Revoke records a token ID as revoked.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string) error {
	if err := s.client.rdb.SAdd(ctx, revokedSetKey, tokenID).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token ID has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := s.client.rdb.SIsMember(ctx, revokedSetKey, tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return ok, nil
}
