package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"bapmate/internal/cache"
	"bapmate/internal/geo"
	"bapmate/internal/live"
	"bapmate/internal/model"
	"bapmate/internal/repository"
)

// RoomReader resolves a room for one of its participants.
type RoomReader interface {
	GetRoom(ctx context.Context, roomID, userID string) (*model.ChatRoom, error)
}

// LocationService runs live location sharing inside a chat room. Sessions are
// ephemeral and live in Redis only.
type LocationService struct {
	rooms    RoomReader
	store    cache.LocationStore
	names    nameResolver
	signaler RoomSignaler // optional
	now      func() time.Time
}

func NewLocationService(
	rooms RoomReader,
	store cache.LocationStore,
	userRepo repository.UserRepository,
	nameCache cache.NameCache,
	signaler RoomSignaler,
) *LocationService {
	return &LocationService{
		rooms:    rooms,
		store:    store,
		names:    nameResolver{userRepo: userRepo, cache: nameCache},
		signaler: signaler,
		now:      time.Now,
	}
}

// Start begins sharing the caller's position in the room.
func (s *LocationService) Start(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.write(ctx, roomID, userID, req.Lat, req.Lng)
}

// Update moves the caller's shared position. Sharing must have been started.
func (s *LocationService) Update(ctx context.Context, roomID, userID string, req model.LocationUpdateRequest) (*model.LocationSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	current, found, err := s.store.Get(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !found || !current.IsSharing {
		return nil, model.ErrNotSharing
	}
	return s.write(ctx, roomID, userID, req.Lat, req.Lng)
}

// Stop ends sharing. The session stays listed without coordinates.
func (s *LocationService) Stop(ctx context.Context, roomID, userID string) (*model.LocationSession, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	name, err := s.names.name(ctx, userID)
	if err != nil {
		return nil, err
	}
	session := model.LocationSession{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: name,
		IsSharing:   false,
		UpdatedAt:   s.now().UnixMilli(),
	}
	if err := s.store.Put(ctx, session); err != nil {
		return nil, err
	}
	signalRoom(ctx, s.signaler, "LocationService", roomID, live.TopicLocation)
	return &session, nil
}

func (s *LocationService) write(ctx context.Context, roomID, userID string, lat, lng *float64) (*model.LocationSession, error) {
	name, err := s.names.name(ctx, userID)
	if err != nil {
		return nil, err
	}
	session := model.LocationSession{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: name,
		IsSharing:   true,
		Lat:         lat,
		Lng:         lng,
		UpdatedAt:   s.now().UnixMilli(),
	}
	if err := s.store.Put(ctx, session); err != nil {
		return nil, err
	}
	signalRoom(ctx, s.signaler, "LocationService", roomID, live.TopicLocation)
	return &session, nil
}

// Members lists every session of the room with the distance of each sharing
// member to the meeting point.
func (s *LocationService) Members(ctx context.Context, roomID, userID string) (*model.LocationMembersResponse, error) {
	room, err := s.rooms.GetRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.List(ctx, roomID)
	if err != nil {
		return nil, err
	}

	meeting := room.Meeting()
	members := make([]model.LocationSession, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsSharing {
			session.Lat, session.Lng = nil, nil
		}
		if session.IsSharing && session.Lat != nil && session.Lng != nil {
			d := geo.RoundedDistance(*session.Lat, *session.Lng, meeting.Lat, meeting.Lng)
			session.DistanceM = &d
		}
		members = append(members, session)
	}
	sortSessions(members)

	return &model.LocationMembersResponse{Meeting: meeting, Members: members}, nil
}

// sortSessions orders members by display name, then uid.
func sortSessions(sessions []model.LocationSession) {
	slices.SortFunc(sessions, func(a, b model.LocationSession) int {
		return cmp.Or(cmp.Compare(a.DisplayName, b.DisplayName), cmp.Compare(a.UserID, b.UserID))
	})
}
