package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bapmate/internal/geo"
	"bapmate/internal/live"
	"bapmate/internal/model"
)

type roomReaderFunc func(ctx context.Context, roomID, userID string) (*model.ChatRoom, error)

func (f roomReaderFunc) GetRoom(ctx context.Context, roomID, userID string) (*model.ChatRoom, error) {
	return f(ctx, roomID, userID)
}

func newLocationFixture(t *testing.T) (*LocationService, *mockSignaler) {
	t.Helper()
	_, store := newLocationStore(t)
	rooms := roomReaderFunc(func(ctx context.Context, roomID, userID string) (*model.ChatRoom, error) {
		if userID == "stranger" {
			return nil, model.ErrNotRoomParticipant
		}
		return &model.ChatRoom{ID: roomID, Participants: []string{"u1", "u2", "u3"}}, nil
	})
	signals := &mockSignaler{}
	svc := NewLocationService(rooms, store, namesRepo(map[string]string{"u1": "Mina", "u2": "Jun", "u3": "Mina"}), nil, signals)
	svc.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return svc, signals
}

func coords(lat, lng float64) model.LocationUpdateRequest {
	return model.LocationUpdateRequest{Lat: floatPtr(lat), Lng: floatPtr(lng)}
}

// =============================================================================
// SHARING LIFECYCLE TESTS
// =============================================================================

func TestLocationService_StartUpdateStop(t *testing.T) {
	svc, signals := newLocationFixture(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "c1", "u1", coords(37.5, 127.0))
	assert.ErrorIs(t, err, model.ErrNotSharing)

	started, err := svc.Start(ctx, "c1", "u1", coords(37.5, 127.0))
	require.NoError(t, err)
	assert.True(t, started.IsSharing)
	assert.Equal(t, "Mina", started.DisplayName)
	assert.Equal(t, int64(1_700_000_000_000), started.UpdatedAt)

	moved, err := svc.Update(ctx, "c1", "u1", coords(37.6, 127.1))
	require.NoError(t, err)
	assert.Equal(t, 37.6, *moved.Lat)

	stopped, err := svc.Stop(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.False(t, stopped.IsSharing)
	assert.Nil(t, stopped.Lat)

	_, err = svc.Update(ctx, "c1", "u1", coords(37.6, 127.1))
	assert.ErrorIs(t, err, model.ErrNotSharing)

	assert.Len(t, signals.signals, 3)
	for _, s := range signals.signals {
		assert.Equal(t, "c1:"+live.TopicLocation, s)
	}
}

func TestLocationService_Validation(t *testing.T) {
	svc, _ := newLocationFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    string
		req     model.LocationUpdateRequest
		wantErr error
	}{
		{name: "missing lng", user: "u1", req: model.LocationUpdateRequest{Lat: floatPtr(1)}, wantErr: model.ErrInvalidCoordinates},
		{name: "lat out of range", user: "u1", req: coords(-90.5, 0), wantErr: model.ErrInvalidCoordinates},
		{name: "lng out of range", user: "u1", req: coords(0, 180.1), wantErr: model.ErrInvalidCoordinates},
		{name: "not a participant", user: "stranger", req: coords(0, 0), wantErr: model.ErrNotRoomParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Start(ctx, "c1", tt.user, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// =============================================================================
// MEMBERS TESTS
// =============================================================================

func TestLocationService_Members(t *testing.T) {
	svc, _ := newLocationFixture(t)
	ctx := context.Background()
	meeting := model.DefaultMeetingPoint

	_, err := svc.Start(ctx, "c1", "u3", coords(37.5, 127.0))
	require.NoError(t, err)
	_, err = svc.Start(ctx, "c1", "u1", coords(meeting.Lat, meeting.Lng))
	require.NoError(t, err)
	_, err = svc.Start(ctx, "c1", "u2", coords(37.0, 127.0))
	require.NoError(t, err)
	_, err = svc.Stop(ctx, "c1", "u2")
	require.NoError(t, err)

	resp, err := svc.Members(ctx, "c1", "u1")
	require.NoError(t, err)

	assert.Equal(t, meeting, resp.Meeting)
	require.Len(t, resp.Members, 3)
	// by name, then uid
	assert.Equal(t, []string{"u2", "u1", "u3"}, []string{resp.Members[0].UserID, resp.Members[1].UserID, resp.Members[2].UserID})

	jun := resp.Members[0]
	assert.False(t, jun.IsSharing)
	assert.Nil(t, jun.Lat)
	assert.Nil(t, jun.DistanceM)

	require.NotNil(t, resp.Members[1].DistanceM)
	assert.Equal(t, int64(0), *resp.Members[1].DistanceM)

	want := geo.RoundedDistance(37.5, 127.0, meeting.Lat, meeting.Lng)
	require.NotNil(t, resp.Members[2].DistanceM)
	assert.Equal(t, want, *resp.Members[2].DistanceM)
}

func TestLocationService_Members_UsesRoomMeeting(t *testing.T) {
	_, store := newLocationStore(t)
	lat, lng, name := 37.4979, 127.0276, "강남역"
	rooms := roomReaderFunc(func(ctx context.Context, roomID, userID string) (*model.ChatRoom, error) {
		return &model.ChatRoom{ID: roomID, MeetingLat: &lat, MeetingLng: &lng, MeetingName: &name}, nil
	})
	svc := NewLocationService(rooms, store, namesRepo(map[string]string{"u1": "Mina"}), nil, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, "c1", "u1", coords(lat, lng))
	require.NoError(t, err)

	resp, err := svc.Members(ctx, "c1", "u1")

	require.NoError(t, err)
	assert.Equal(t, "강남역", resp.Meeting.Name)
	assert.Equal(t, int64(0), *resp.Members[0].DistanceM)
}
