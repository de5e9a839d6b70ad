package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bapmate/internal/model"
)

type mockRoomLeaver struct {
	rooms   []string
	leaveFn func(roomID string) error
	left    []string
}

func (m *mockRoomLeaver) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return m.rooms, nil
}

func (m *mockRoomLeaver) LeaveSelf(ctx context.Context, roomID, userID string) error {
	m.left = append(m.left, roomID)
	if m.leaveFn != nil {
		return m.leaveFn(roomID)
	}
	return nil
}

type accountFixture struct {
	users    *mockUserRepository
	posts    *mockPostRepository
	requests *mockRequestRepository
	refresh  *mockRefreshTokenRepository
	devices  *mockDeviceTokenRepository
	rooms    *mockRoomLeaver
	names    *recordingNameCache
}

func newAccountFixture() *accountFixture {
	return &accountFixture{
		users:    &mockUserRepository{},
		posts:    &mockPostRepository{},
		requests: &mockRequestRepository{},
		refresh:  &mockRefreshTokenRepository{},
		devices:  &mockDeviceTokenRepository{},
		rooms:    &mockRoomLeaver{},
		names:    &recordingNameCache{},
	}
}

// service scripts one committed transaction.
func (f *accountFixture) service(t *testing.T, now time.Time) *AccountService {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewAccountService(f.users, f.posts, f.requests, f.refresh, f.devices, f.rooms, f.names, db, 0)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAccountService_DeleteAccount(t *testing.T) {
	// ARRANGE
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newAccountFixture()
	var postIDs []string
	for i := 0; i < 25; i++ {
		postIDs = append(postIDs, fmt.Sprintf("p%02d", i))
	}
	f.posts.idsByAuthorFn = func(ctx context.Context, authorID string) ([]string, error) { return postIDs, nil }
	f.rooms.rooms = []string{"c1", "c2"}
	f.rooms.leaveFn = func(roomID string) error {
		if roomID == "c1" {
			return model.ErrNotRoomParticipant
		}
		return nil
	}
	svc := f.service(t, now)

	// ACT
	err := svc.DeleteAccount(context.Background(), "u1", now.Add(-time.Minute))

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, f.requests.deleteBySenderCalls)
	require.Len(t, f.requests.deleteByPostsCalls, 3)
	assert.Len(t, f.requests.deleteByPostsCalls[0], 10)
	assert.Len(t, f.requests.deleteByPostsCalls[1], 10)
	assert.Equal(t, []string{"p20", "p21", "p22", "p23", "p24"}, f.requests.deleteByPostsCalls[2])
	assert.Equal(t, []string{"u1"}, f.posts.deleteByAuthorCalls)
	assert.Equal(t, []string{"u1"}, f.devices.deleteAllCalls)
	assert.Equal(t, []string{"u1"}, f.refresh.deleteAllCalls)
	assert.Equal(t, []string{"c1", "c2"}, f.rooms.left)
	assert.Equal(t, []string{"u1"}, f.names.invalidated)
}

func TestAccountService_DeleteAccount_StaleLogin(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, issued := range []time.Time{{}, now.Add(-DefaultRecentLoginWindow - time.Second)} {
		f := newAccountFixture()
		f.rooms.rooms = []string{"c1"}
		db, _ := newMockDB(t)
		svc := NewAccountService(f.users, f.posts, f.requests, f.refresh, f.devices, f.rooms, f.names, db, 0)
		svc.now = func() time.Time { return now }

		err := svc.DeleteAccount(context.Background(), "u1", issued)

		assert.ErrorIs(t, err, model.ErrRecentLoginRequired)
		assert.ErrorIs(t, err, model.ErrReauthenticationRequired)
		assert.Empty(t, f.requests.deleteBySenderCalls)
		assert.Empty(t, f.rooms.left)
	}
}

func TestAccountService_DeleteAccount_RollbackSkipsRooms(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newAccountFixture()
	f.rooms.rooms = []string{"c1"}
	f.users.deleteFn = func(ctx context.Context, tx *sqlx.Tx, id string) error { return errors.New("boom") }

	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	svc := NewAccountService(f.users, f.posts, f.requests, f.refresh, f.devices, f.rooms, f.names, db, time.Minute)
	svc.now = func() time.Time { return now }

	err := svc.DeleteAccount(context.Background(), "u1", now)

	require.Error(t, err)
	assert.Empty(t, f.rooms.left)
	assert.Empty(t, f.names.invalidated)
}
