package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// GameSelectionService 读取和设置房间当前选择的游戏。
type GameSelectionService struct {
	deps *Deps
}

func NewGameSelectionService(deps *Deps) *GameSelectionService {
	if deps == nil {
		panic("Deps cannot be nil for GameSelectionService")
	}
	return &GameSelectionService{deps: deps}
}

// Get 返回当前选择，从未选择过时类型为 NONE 且时间和选择人为空。
func (s *GameSelectionService) Get(ctx context.Context, roomID uint) (*dto.SelectedGamePayload, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "get_selected_game"})

	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return nil, err
	}
	state, err := readGameState(ctx, s.deps, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	payload := dto.NewSelectedGamePayload(state.Selected)
	return &payload, nil
}

// Set 由房主或系统角色设置当前游戏
func (s *GameSelectionService) Set(ctx context.Context, actor Actor, roomID uint, gameType string) (*dto.SelectedGamePayload, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "set_selected_game"})

	selected := domain.GameType(gameType)
	if !selected.IsValid() {
		return nil, ErrInvalidGameType
	}
	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if !s.deps.Policy.CanHost(actor, room) {
		logCtx.Warn("Game selection rejected: caller cannot host")
		return nil, ErrForbidden
	}
	if room.Status == domain.RoomStatusEnded {
		return nil, ErrRoomEnded
	}

	state, err := mutateGameState(ctx, s.deps, logCtx, roomID, func(_ repository.Store, state *domain.GameState) error {
		now := s.deps.now()
		selector := actor.UserID
		state.Selected = domain.SelectedGame{Type: selected, SelectedAt: &now, SelectedByID: &selector}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := dto.NewSelectedGamePayload(state.Selected)
	logCtx.WithField("game_type", selected).Info("Game selected")
	s.deps.broadcast(ctx, dto.EventGameSelected, roomID, payload)
	s.deps.audit(ctx, actor.UserID, "room.game_selected", "room", roomID, map[string]interface{}{"type": selected})
	return &payload, nil
}
