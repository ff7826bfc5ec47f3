package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/repository"
)

// MaskPalette 是面具惩罚可抽到的颜色
var MaskPalette = []string{"#FF6B6B", "#4D96FF", "#6BCB77", "#FFD93D", "#9B5DE5"}

// PenaltyTraceMessages 是动态惩罚可抽到的系统文案
var PenaltyTraceMessages = []string{
	"有人在真心话骰子里选择了沉默，秘密还在房间里。",
	"一位神秘玩家拒绝了真心话，留下一个问号。",
	"真心话骰子又吞掉了一个不愿说出口的答案。",
}

// 惩罚抽取顺序，对应 Randomizer.Intn(3) 的结果
var penaltyOrder = []domain.PenaltyType{domain.PenaltySilence, domain.PenaltyMask, domain.PenaltyTrace}

const traceSourceDicePenalty = "dice_penalty"

// DiceService 驱动真心话骰子的状态机：IDLE -> AWAIT_QUESTION -> AWAIT_RESPONSE -> IDLE。
type DiceService struct {
	deps *Deps
}

// NewDiceService 创建 DiceService 实例。
func NewDiceService(deps *Deps) *DiceService {
	if deps == nil {
		panic("Deps cannot be nil for DiceService")
	}
	return &DiceService{deps: deps}
}

// diceStep 在事务内修改骰子状态
type diceStep func(tx repository.Store, dice *domain.DiceState, now time.Time) error

// Get 返回骰子状态，过期的禁言会被清理并写回。
func (s *DiceService) Get(ctx context.Context, actor Actor, roomID uint) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_get"})

	if _, err := loadRoom(ctx, s.deps.Store, logCtx, roomID); err != nil {
		return nil, err
	}
	if _, err := memberOrSystem(ctx, s.deps, logCtx, actor, roomID); err != nil {
		return nil, err
	}
	state, err := mutateGameState(ctx, s.deps, logCtx, roomID, func(repository.Store, *domain.GameState) error {
		return errSkipSave
	})
	if err != nil {
		return nil, err
	}
	return &state.Dice, nil
}

// Start 由房主或系统角色开启新一轮，从活跃参与者中随机选出提问者。
func (s *DiceService) Start(ctx context.Context, actor Actor, roomID uint) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_start"})

	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	if !s.deps.Policy.CanHost(actor, room) {
		logCtx.Warn("Dice start rejected: caller cannot host")
		return nil, ErrForbidden
	}
	return s.run(ctx, actor, room, logCtx, false, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		members, err := tx.Memberships().ListActive(ctx, roomID)
		if err != nil {
			return err
		}
		participants := make([]uint, 0, len(members))
		for _, m := range members {
			if m.Mode == domain.MemberModeParticipant {
				participants = append(participants, m.UserID)
			}
		}
		if dice.Phase != domain.DicePhaseIdle {
			// 提问者已经离开或转为旁观时，本轮无人能推进，允许房主重开
			if !askerAbandoned(dice, participants) {
				return ErrDiceRoundActive
			}
			logCtx.WithField("asker_id", *dice.AskerID).Info("Closing dice round abandoned by asker")
			dice.CloseRound(domain.DiceOutcomeSkipped, nil)
		}
		if len(participants) == 0 {
			return ErrNoParticipants
		}
		askerID := participants[s.deps.Random.Intn(len(participants))]

		dice.ResetRound()
		dice.Phase = domain.DicePhaseAwaitQuestion
		dice.AskerID = &askerID
		dice.SilentProtectedTargets = make(map[uint]domain.ProtectedEntry)
		logCtx.WithField("asker_id", askerID).Info("Dice round started")
		return nil
	})
}

// Ask 由提问者提出问题，scope 为 single 时必须指定一个活跃参与者。
func (s *DiceService) Ask(ctx context.Context, actor Actor, roomID uint, req dto.DiceAskRequest) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_ask"})

	return s.participantAction(ctx, actor, roomID, logCtx, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		if dice.Phase != domain.DicePhaseAwaitQuestion {
			return ErrDiceInvalidPhase
		}
		if dice.AskerID == nil || *dice.AskerID != actor.UserID {
			return ErrDiceNotAsker
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			return ErrDiceQuestionRequired
		}

		scope := domain.DiceTargetScope(req.TargetScope)
		var targetID *uint
		switch scope {
		case domain.DiceScopeAll:
		case domain.DiceScopeSingle:
			if req.TargetID == nil || *req.TargetID == actor.UserID {
				return ErrDiceInvalidTarget
			}
			target, err := tx.Memberships().Find(ctx, roomID, *req.TargetID)
			if err != nil {
				if isNotFound(err) {
					return ErrDiceInvalidTarget
				}
				return err
			}
			if !target.IsParticipant() {
				return ErrDiceInvalidTarget
			}
			id := *req.TargetID
			targetID = &id
		default:
			return ErrDiceInvalidTarget
		}

		dice.Phase = domain.DicePhaseAwaitResponse
		dice.Question = &question
		dice.TargetScope = &scope
		dice.TargetID = targetID
		return nil
	})
}

// Respond 由有资格的用户回答，第一个回答的人结束本轮。
func (s *DiceService) Respond(ctx context.Context, actor Actor, roomID uint, answer string) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_respond"})

	return s.participantAction(ctx, actor, roomID, logCtx, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		if err := ensureCanRespond(dice, actor.UserID); err != nil {
			return err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return ErrDiceAnswerRequired
		}
		responder := actor.UserID
		dice.Answer = &answer
		dice.AnsweredBy = &responder
		dice.CloseRound(domain.DiceOutcomeAnswered, nil)
		return nil
	})
}

// Refuse 拒绝回答并随机抽取一种惩罚：禁言、面具或匿名动态。
func (s *DiceService) Refuse(ctx context.Context, actor Actor, roomID uint) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_refuse"})

	var penalty *domain.DicePenalty
	state, err := s.participantAction(ctx, actor, roomID, logCtx, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		if err := ensureCanRespond(dice, actor.UserID); err != nil {
			return err
		}
		p, err := s.rollPenalty(ctx, tx, dice, roomID, actor.UserID, now)
		if err != nil {
			return err
		}
		dice.CloseRound(domain.DiceOutcomeRefused, p)
		penalty = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx.WithField("penalty", penalty.Type).Info("Dice refusal penalized")
	s.deps.audit(ctx, actor.UserID, "dice.penalty", "room", roomID, map[string]interface{}{"type": penalty.Type})
	return state, nil
}

func (s *DiceService) rollPenalty(ctx context.Context, tx repository.Store, dice *domain.DiceState, roomID, userID uint, now time.Time) (*domain.DicePenalty, error) {
	penalty := &domain.DicePenalty{Type: penaltyOrder[s.deps.Random.Intn(len(penaltyOrder))], UserID: userID}
	switch penalty.Type {
	case domain.PenaltySilence:
		until := now.Add(s.deps.SilenceDuration)
		dice.Silences[userID] = domain.SilenceEntry{Until: until}
		penalty.Until = &until
	case domain.PenaltyMask:
		color := MaskPalette[s.deps.Random.Intn(len(MaskPalette))]
		dice.MaskColors[userID] = color
		penalty.Color = color
	case domain.PenaltyTrace:
		room := roomID
		trace := &domain.Trace{
			RoomID:    &room,
			Content:   PenaltyTraceMessages[s.deps.Random.Intn(len(PenaltyTraceMessages))],
			IsPublic:  true,
			Source:    traceSourceDicePenalty,
			CreatedAt: now,
		}
		if err := tx.Traces().Create(ctx, trace); err != nil {
			return nil, err
		}
		traceID := trace.ID
		penalty.TraceID = &traceID
	}
	return penalty, nil
}

// Skip 由提问者撤回问题，本轮以 skipped 结束且没有惩罚。
func (s *DiceService) Skip(ctx context.Context, actor Actor, roomID uint) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_skip"})

	return s.participantAction(ctx, actor, roomID, logCtx, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		if dice.Phase != domain.DicePhaseAwaitResponse {
			return ErrDiceInvalidPhase
		}
		if dice.AskerID == nil || *dice.AskerID != actor.UserID {
			return ErrDiceNotAsker
		}
		dice.CloseRound(domain.DiceOutcomeSkipped, nil)
		return nil
	})
}

// 保护动作类型
const (
	ProtectSkip     = "skip"
	ProtectSilent   = "silent"
	ProtectObserver = "observer"
)

// Protect 由有资格回应的用户结束本轮且不抽惩罚。
// silent 额外记录保护标记，observer 额外把调用方降为旁观者。
func (s *DiceService) Protect(ctx context.Context, actor Actor, roomID uint, kind string) (*domain.DiceState, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": actor.UserID, "room_id": roomID, "operation": "dice_protect", "kind": kind})

	switch kind {
	case ProtectSkip, ProtectSilent, ProtectObserver:
	default:
		return nil, ErrDiceInvalidProtect
	}

	return s.participantAction(ctx, actor, roomID, logCtx, func(tx repository.Store, dice *domain.DiceState, now time.Time) error {
		if err := ensureCanRespond(dice, actor.UserID); err != nil {
			return err
		}
		switch kind {
		case ProtectSkip:
			dice.CloseRound(domain.DiceOutcomeSkipped, nil)
		case ProtectSilent:
			dice.SilentProtectedTargets[actor.UserID] = domain.ProtectedEntry{At: now}
			dice.CloseRound(domain.DiceOutcomeSilentProtected, nil)
		case ProtectObserver:
			if err := tx.Memberships().UpdateMode(ctx, roomID, actor.UserID, domain.MemberModeObserver); err != nil {
				return err
			}
			dice.CloseRound(domain.DiceOutcomeObserver, nil)
		}
		return nil
	})
}

// askerAbandoned 判断等待提问的轮次是否因提问者不再是活跃参与者而无法继续
func askerAbandoned(dice *domain.DiceState, participants []uint) bool {
	if dice.Phase != domain.DicePhaseAwaitQuestion || dice.AskerID == nil {
		return false
	}
	return !slices.Contains(participants, *dice.AskerID)
}

func ensureCanRespond(dice *domain.DiceState, userID uint) error {
	if dice.Phase != domain.DicePhaseAwaitResponse {
		return ErrDiceInvalidPhase
	}
	if !dice.CanRespond(userID) {
		return ErrDiceNotEligible
	}
	return nil
}

// participantAction 读取房间后执行需要参与者身份的骰子动作
func (s *DiceService) participantAction(ctx context.Context, actor Actor, roomID uint, logCtx *logrus.Entry, step diceStep) (*domain.DiceState, error) {
	room, err := loadRoom(ctx, s.deps.Store, logCtx, roomID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, actor, room, logCtx, true, step)
}

// run 依次检查禁言、参与者身份和房间状态，然后在游戏锁内执行 step 并广播新状态。
func (s *DiceService) run(ctx context.Context, actor Actor, room *domain.Room, logCtx *logrus.Entry, requireParticipant bool, step diceStep) (*domain.DiceState, error) {
	state, err := mutateGameState(ctx, s.deps, logCtx, room.ID, func(tx repository.Store, state *domain.GameState) error {
		now := s.deps.now()
		if until, ok := state.Dice.SilencedUntil(actor.UserID, now); ok {
			return &SilencedError{Until: until}
		}
		if requireParticipant {
			membership, err := tx.Memberships().Find(ctx, room.ID, actor.UserID)
			if err != nil {
				if isNotFound(err) {
					return ErrNotParticipant
				}
				return err
			}
			if !membership.IsParticipant() {
				return ErrNotParticipant
			}
		}
		if room.Status != domain.RoomStatusLive {
			return ErrRoomNotLive
		}
		if err := step(tx, &state.Dice, now); err != nil {
			return err
		}
		state.GameType = domain.GameTypeDice
		return nil
	})
	if err != nil {
		if code := ErrorCode(err); code != ErrInternalServer.Code && code != ErrConflict.Code {
			logCtx.WithField("code", code).Warn("Dice action rejected")
		}
		return nil, err
	}

	s.deps.broadcast(ctx, dto.EventDiceUpdated, room.ID, state.Dice)
	return &state.Dice, nil
}
