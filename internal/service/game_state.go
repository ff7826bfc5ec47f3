package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

// stateMutation 在事务内修改游戏状态，返回 errSkipSave 时不写回。
type stateMutation func(tx repository.Store, state *domain.GameState) error

// errSkipSave 表示修改函数判断状态无需写回
var errSkipSave = errors.New("game state unchanged")

// mutateGameState 串行化同一房间的游戏状态读改写：
// 先持有 game 锁，再在事务内加行锁读取、修改、按版本号写回。
// 行不存在时补建默认状态。返回写回后的状态。
func mutateGameState(ctx context.Context, deps *Deps, logCtx *logrus.Entry, roomID uint, fn stateMutation) (domain.GameState, error) {
	unlock, err := deps.lock(ctx, gameLockKey(roomID))
	if err != nil {
		return domain.GameState{}, mapRepoError(logCtx, err, "Failed to acquire game lock")
	}
	defer unlock()

	var result domain.GameState
	err = deps.Store.Transaction(ctx, func(tx repository.Store) error {
		row, err := loadStateRow(ctx, tx, roomID, true)
		if err != nil {
			return err
		}
		state, err := row.ParseState()
		if err != nil {
			return err
		}
		pruned := state.Dice.PruneSilences(deps.now())

		if err := fn(tx, &state); err != nil {
			if errors.Is(err, errSkipSave) {
				result = state
				if !pruned {
					return nil
				}
			} else {
				return err
			}
		}
		if err := row.SetState(state); err != nil {
			return err
		}
		if err := tx.GameStates().Save(ctx, row); err != nil {
			return err
		}
		result = state
		return nil
	})
	if err != nil {
		return domain.GameState{}, mapRepoError(logCtx, err, "Failed to update game state")
	}
	return result, nil
}

// loadStateRow 读取房间的状态行，不存在时创建默认行。并发创建冲突时重新读取。
func loadStateRow(ctx context.Context, tx repository.Store, roomID uint, forUpdate bool) (*domain.RoomGameState, error) {
	get := tx.GameStates().Get
	if forUpdate {
		get = tx.GameStates().GetForUpdate
	}
	row, err := get(ctx, roomID)
	if err == nil {
		return row, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	row = &domain.RoomGameState{RoomID: roomID}
	if err := row.SetState(domain.NewGameState()); err != nil {
		return nil, err
	}
	if err := tx.GameStates().Create(ctx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return get(ctx, roomID)
		}
		return nil, err
	}
	return row, nil
}

// readGameState 读取房间的游戏状态，不写回。
func readGameState(ctx context.Context, deps *Deps, logCtx *logrus.Entry, roomID uint) (domain.GameState, error) {
	row, err := deps.Store.GameStates().Get(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return domain.NewGameState(), nil
		}
		return domain.GameState{}, mapRepoError(logCtx, err, "Failed to load game state")
	}
	state, err := row.ParseState()
	if err != nil {
		return domain.GameState{}, mapRepoError(logCtx, err, "Failed to parse game state")
	}
	return state, nil
}

// ensureNotSilenced 检查用户在房间内是否处于禁言期
func ensureNotSilenced(ctx context.Context, deps *Deps, logCtx *logrus.Entry, roomID, userID uint) error {
	state, err := readGameState(ctx, deps, logCtx, roomID)
	if err != nil {
		return err
	}
	if until, ok := state.Dice.SilencedUntil(userID, deps.now()); ok {
		return &SilencedError{Until: until}
	}
	return nil
}

// memberOrSystem 返回调用方的活跃成员记录；系统角色不是成员时返回 nil。
func memberOrSystem(ctx context.Context, deps *Deps, logCtx *logrus.Entry, actor Actor, roomID uint) (*domain.RoomMembership, error) {
	membership, err := activeMembership(ctx, deps.Store, logCtx, roomID, actor.UserID)
	if err == nil {
		return membership, nil
	}
	if errors.Is(err, ErrNotMember) && actor.Role.IsSystem() {
		return nil, nil
	}
	return nil, err
}
