package memorypersistence

import (
	"context"
	"slices"
	"time"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

type memUsers struct{ s *MemoryStore }

func (r memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	defer r.s.guard()()
	for _, user := range r.s.data.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r memUsers) FindByID(_ context.Context, id uint) (*domain.User, error) {
	defer r.s.guard()()
	user, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (r memUsers) FindByIDs(_ context.Context, ids []uint) ([]domain.User, error) {
	defer r.s.guard()()
	users := []domain.User{}
	for _, user := range sortedByID(r.s.data.users) {
		if slices.Contains(ids, user.ID) {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r memUsers) Save(_ context.Context, user *domain.User) error {
	defer r.s.guard()()
	for _, existing := range r.s.data.users {
		if existing.Username == user.Username && existing.ID != user.ID {
			return repository.ErrDuplicateEntry
		}
	}
	now := time.Now()
	if user.ID == 0 {
		user.ID = r.s.data.nextID()
		user.CreatedAt = now
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.UpdatedAt = now
	r.s.data.users[user.ID] = *user
	return nil
}

type memRooms struct{ s *MemoryStore }

func (r memRooms) FindByID(_ context.Context, id uint) (*domain.Room, error) {
	defer r.s.guard()()
	room, ok := r.s.data.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &room, nil
}

func (r memRooms) Create(_ context.Context, room *domain.Room) error {
	defer r.s.guard()()
	now := time.Now()
	room.ID = r.s.data.nextID()
	room.CreatedAt = now
	room.UpdatedAt = now
	r.s.data.rooms[room.ID] = *room
	return nil
}

func (r memRooms) Save(_ context.Context, room *domain.Room) error {
	defer r.s.guard()()
	if _, ok := r.s.data.rooms[room.ID]; !ok {
		return repository.ErrRoomNotFound
	}
	room.UpdatedAt = time.Now()
	r.s.data.rooms[room.ID] = *room
	return nil
}

func (r memRooms) List(_ context.Context, filter repository.RoomFilter) ([]domain.Room, error) {
	defer r.s.guard()()
	rooms := []domain.Room{}
	all := sortedByID(r.s.data.rooms)
	for i := len(all) - 1; i >= 0; i-- {
		room := all[i]
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, room.Status) {
			continue
		}
		if filter.OfficialOnly && !room.IsOfficial {
			continue
		}
		rooms = append(rooms, room)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(rooms) {
			return []domain.Room{}, nil
		}
		rooms = rooms[filter.Offset:]
	}
	if filter.Limit > 0 && len(rooms) > filter.Limit {
		rooms = rooms[:filter.Limit]
	}
	return rooms, nil
}

type memMemberships struct{ s *MemoryStore }

func (r memMemberships) find(roomID, userID uint) (domain.RoomMembership, bool) {
	for _, m := range r.s.data.memberships {
		if m.RoomID == roomID && m.UserID == userID {
			return m, true
		}
	}
	return domain.RoomMembership{}, false
}

func (r memMemberships) Find(_ context.Context, roomID, userID uint) (*domain.RoomMembership, error) {
	defer r.s.guard()()
	m, ok := r.find(roomID, userID)
	if !ok {
		return nil, repository.ErrMembershipNotFound
	}
	return &m, nil
}

func (r memMemberships) FindActiveByUser(_ context.Context, userID uint) (*domain.RoomMembership, error) {
	defer r.s.guard()()
	for _, m := range sortedByID(r.s.data.memberships) {
		if m.UserID == userID && m.LeftAt == nil {
			return &m, nil
		}
	}
	return nil, repository.ErrMembershipNotFound
}

func (r memMemberships) CountActive(_ context.Context, roomID uint) (int64, error) {
	defer r.s.guard()()
	var count int64
	for _, m := range r.s.data.memberships {
		if m.RoomID == roomID && m.LeftAt == nil {
			count++
		}
	}
	return count, nil
}

func (r memMemberships) CountActiveByRooms(_ context.Context, roomIDs []uint) (map[uint]int64, error) {
	defer r.s.guard()()
	counts := make(map[uint]int64, len(roomIDs))
	for _, m := range r.s.data.memberships {
		if m.LeftAt == nil && slices.Contains(roomIDs, m.RoomID) {
			counts[m.RoomID]++
		}
	}
	return counts, nil
}

func (r memMemberships) ListActive(_ context.Context, roomID uint) ([]domain.RoomMembership, error) {
	defer r.s.guard()()
	active := []domain.RoomMembership{}
	for _, m := range sortedByID(r.s.data.memberships) {
		if m.RoomID == roomID && m.LeftAt == nil {
			active = append(active, m)
		}
	}
	slices.SortStableFunc(active, func(a, b domain.RoomMembership) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return active, nil
}

func (r memMemberships) CloseActiveExcept(_ context.Context, userID, exceptRoomID uint, at time.Time) ([]uint, error) {
	defer r.s.guard()()
	closed := []uint{}
	for _, m := range sortedByID(r.s.data.memberships) {
		if m.UserID != userID || m.RoomID == exceptRoomID || m.LeftAt != nil {
			continue
		}
		leftAt := at
		m.LeftAt = &leftAt
		r.s.data.memberships[m.ID] = m
		closed = append(closed, m.RoomID)
	}
	return closed, nil
}

func (r memMemberships) Upsert(_ context.Context, membership *domain.RoomMembership) error {
	defer r.s.guard()()
	if existing, ok := r.find(membership.RoomID, membership.UserID); ok {
		membership.ID = existing.ID
	} else {
		membership.ID = r.s.data.nextID()
	}
	r.s.data.memberships[membership.ID] = *membership
	return nil
}

func (r memMemberships) Close(_ context.Context, roomID, userID uint, at time.Time) error {
	defer r.s.guard()()
	m, ok := r.find(roomID, userID)
	if !ok {
		return repository.ErrMembershipNotFound
	}
	leftAt := at
	m.LeftAt = &leftAt
	r.s.data.memberships[m.ID] = m
	return nil
}

func (r memMemberships) UpdateMode(_ context.Context, roomID, userID uint, mode domain.MemberMode) error {
	defer r.s.guard()()
	m, ok := r.find(roomID, userID)
	if !ok {
		return repository.ErrMembershipNotFound
	}
	m.Mode = mode
	r.s.data.memberships[m.ID] = m
	return nil
}

type memGameStates struct{ s *MemoryStore }

func (r memGameStates) Get(_ context.Context, roomID uint) (*domain.RoomGameState, error) {
	defer r.s.guard()()
	for _, state := range r.s.data.gameStates {
		if state.RoomID == roomID {
			state.Data = slices.Clone(state.Data)
			return &state, nil
		}
	}
	return nil, repository.ErrGameStateNotFound
}

// GetForUpdate 在内存实现中与 Get 相同，事务本身已经互斥。
func (r memGameStates) GetForUpdate(ctx context.Context, roomID uint) (*domain.RoomGameState, error) {
	return r.Get(ctx, roomID)
}

func (r memGameStates) Create(_ context.Context, state *domain.RoomGameState) error {
	defer r.s.guard()()
	for _, existing := range r.s.data.gameStates {
		if existing.RoomID == state.RoomID {
			return repository.ErrDuplicateEntry
		}
	}
	state.ID = r.s.data.nextID()
	state.UpdatedAt = time.Now()
	stored := *state
	stored.Data = slices.Clone(state.Data)
	r.s.data.gameStates[state.ID] = stored
	return nil
}

func (r memGameStates) Save(_ context.Context, state *domain.RoomGameState) error {
	defer r.s.guard()()
	existing, ok := r.s.data.gameStates[state.ID]
	if !ok {
		return repository.ErrGameStateNotFound
	}
	if existing.Version != state.Version {
		return repository.ErrOptimisticLock
	}
	state.Version++
	state.UpdatedAt = time.Now()
	stored := *state
	stored.Data = slices.Clone(state.Data)
	r.s.data.gameStates[state.ID] = stored
	return nil
}
