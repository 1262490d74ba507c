package likes

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

// memoryLikes is an in-memory LikeRepository for testing
type memoryLikes struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

func newMemoryLikes(imageIDs ...string) *memoryLikes {
	m := &memoryLikes{members: make(map[string]map[string]bool)}
	for _, id := range imageIDs {
		m.members[id] = make(map[string]bool)
	}
	return m
}

func (m *memoryLikes) Toggle(_ context.Context, imageID, principalID string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[imageID]
	if !ok {
		return false, 0, fmt.Errorf("image %s: %w", imageID, repository.ErrNotFound)
	}
	if set[principalID] {
		delete(set, principalID)
	} else {
		set[principalID] = true
	}
	return set[principalID], int64(len(set)), nil
}

func (m *memoryLikes) Status(_ context.Context, imageID, principalID string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[imageID]
	if !ok {
		return false, 0, repository.ErrNotFound
	}
	return principalID != "" && set[principalID], int64(len(set)), nil
}

func (m *memoryLikes) LikedSet(_ context.Context, principalID string, imageIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range imageIDs {
		if m.members[id][principalID] {
			out[id] = true
		}
	}
	return out, nil
}

func TestService_ToggleTwiceRestoresState(t *testing.T) {
	svc := NewService(newMemoryLikes("abc123"), telemetry.NewMetrics())
	ctx := context.Background()

	first, err := svc.Toggle(ctx, "abc123", "anon_x")
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: true, LikeCount: 1}, first)

	second, err := svc.Toggle(ctx, "abc123", "anon_x")
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: false, LikeCount: 0}, second)
}

func TestService_Validation(t *testing.T) {
	svc := NewService(newMemoryLikes("abc123"), nil)
	ctx := context.Background()

	for _, id := range []string{"", "../etc", "has space", string(make([]byte, 65))} {
		_, err := svc.Toggle(ctx, id, "u1")
		assert.ErrorIs(t, err, ErrInvalidImageID, "id %q", id)
		_, err = svc.Status(ctx, id, "u1")
		assert.ErrorIs(t, err, ErrInvalidImageID, "id %q", id)
	}

	_, err := svc.Toggle(ctx, "abc123", "")
	assert.ErrorIs(t, err, ErrNoPrincipal)

	_, err = svc.Toggle(ctx, "missing", "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestService_StatusWithoutPrincipal(t *testing.T) {
	svc := NewService(newMemoryLikes("abc123"), nil)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "abc123", "u1")
	require.NoError(t, err)

	res, err := svc.Status(ctx, "abc123", "")
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: false, LikeCount: 1}, res)

	res, err = svc.Status(ctx, "abc123", "u1")
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: true, LikeCount: 1}, res)
}
