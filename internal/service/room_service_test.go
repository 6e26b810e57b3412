package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/timetablepro/timetablepro-api/internal/models"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

type roomRepoStub struct {
	rooms   map[string]*models.Room
	deleted []string
}

func newRoomRepoStub() *roomRepoStub {
	return &roomRepoStub{rooms: map[string]*models.Room{}}
}

func (r *roomRepoStub) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	var out []models.Room
	for _, room := range r.rooms {
		out = append(out, *room)
	}
	return out, len(out), nil
}

func (r *roomRepoStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return room, nil
}

func (r *roomRepoStub) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = "room-generated"
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) Update(ctx context.Context, room *models.Room) error {
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.rooms, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type roomSchedulesStub struct {
	byRoom map[string][]models.Schedule
}

func (s *roomSchedulesStub) ListByRoom(ctx context.Context, roomID string) ([]models.Schedule, error) {
	return s.byRoom[roomID], nil
}

func newRoomServiceUnderTest() (*RoomService, *roomRepoStub, *roomSchedulesStub) {
	repo := newRoomRepoStub()
	schedules := &roomSchedulesStub{byRoom: map[string][]models.Schedule{}}
	return NewRoomService(repo, schedules, nil, zap.NewNop()), repo, schedules
}

func TestRoomServiceCreateDefaultsActive(t *testing.T) {
	svc, repo, _ := newRoomServiceUnderTest()

	room, err := svc.Create(context.Background(), RoomRequest{Name: "  101  ", Building: "Main", Capacity: 30})
	require.NoError(t, err)
	assert.Equal(t, "101", room.Name)
	assert.True(t, room.Active)
	assert.Contains(t, repo.rooms, room.ID)
}

func TestRoomServiceCreateValidation(t *testing.T) {
	svc, _, _ := newRoomServiceUnderTest()

	_, err := svc.Create(context.Background(), RoomRequest{Building: "Main"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), RoomRequest{Name: "101", Capacity: -1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRoomServiceUpdateTogglesActive(t *testing.T) {
	svc, repo, _ := newRoomServiceUnderTest()
	repo.rooms["r1"] = &models.Room{ID: "r1", Name: "101", Building: "Main", Capacity: 30, Active: true}

	inactive := false
	room, err := svc.Update(context.Background(), "r1", RoomRequest{Name: "101", Building: "Main", Capacity: 30, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, room.Active)

	_, err = svc.Update(context.Background(), "missing", RoomRequest{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRoomServiceDeleteRefusesWhileReferenced(t *testing.T) {
	svc, repo, schedules := newRoomServiceUnderTest()
	repo.rooms["r1"] = &models.Room{ID: "r1", Name: "101", Active: true}
	schedules.byRoom["r1"] = []models.Schedule{{ID: "s1", RoomID: "r1"}}

	err := svc.Delete(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.rooms, "r1")

	schedules.byRoom["r1"] = nil
	require.NoError(t, svc.Delete(context.Background(), "r1"))
	assert.NotContains(t, repo.rooms, "r1")
}
