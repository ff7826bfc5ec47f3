package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GameStateSchemaVersion 是当前游戏状态 JSON 的结构版本
const GameStateSchemaVersion = 1

type GameType string

const (
	GameTypeNone     GameType = "NONE"
	GameTypeDice     GameType = "DICE"
	GameTypeOneThing GameType = "ONE_THING"
)

func (t GameType) IsValid() bool {
	switch t {
	case GameTypeNone, GameTypeDice, GameTypeOneThing:
		return true
	}
	return false
}

// --- Dice ---

type DicePhase string

const (
	DicePhaseIdle          DicePhase = "IDLE"
	DicePhaseAwaitQuestion DicePhase = "AWAIT_QUESTION"
	DicePhaseAwaitResponse DicePhase = "AWAIT_RESPONSE"
)

type DiceTargetScope string

const (
	DiceScopeSingle DiceTargetScope = "single"
	DiceScopeAll    DiceTargetScope = "all"
)

type DiceOutcome string

const (
	DiceOutcomeAnswered        DiceOutcome = "answered"
	DiceOutcomeRefused         DiceOutcome = "refused"
	DiceOutcomeSkipped         DiceOutcome = "skipped"
	DiceOutcomeSilentProtected DiceOutcome = "silent_protected"
	DiceOutcomeObserver        DiceOutcome = "observer"
)

type PenaltyType string

const (
	PenaltySilence PenaltyType = "silence"
	PenaltyMask    PenaltyType = "mask"
	PenaltyTrace   PenaltyType = "trace"
)

// DicePenalty 是拒绝回答时抽到的惩罚，按 Type 区分载荷字段。
type DicePenalty struct {
	Type    PenaltyType `json:"type"`
	UserID  uint        `json:"userId"`
	Until   *time.Time  `json:"until,omitempty"`
	Color   string      `json:"color,omitempty"`
	TraceID *uint       `json:"traceId,omitempty"`
}

type SilenceEntry struct {
	Until time.Time `json:"until"`
}

type ProtectedEntry struct {
	At time.Time `json:"at"`
}

// DiceState 是真心话骰子游戏的状态机。
type DiceState struct {
	Phase                  DicePhase               `json:"phase"`
	AskerID                *uint                   `json:"askerId"`
	TargetScope            *DiceTargetScope        `json:"targetScope"`
	TargetID               *uint                   `json:"targetId"`
	Question               *string                 `json:"question"`
	Answer                 *string                 `json:"answer"`
	AnsweredBy             *uint                   `json:"answeredBy"`
	LastOutcome            *DiceOutcome            `json:"lastOutcome"`
	LastPenalty            *DicePenalty            `json:"lastPenalty"`
	Silences               map[uint]SilenceEntry   `json:"silences"`
	MaskColors             map[uint]string         `json:"maskColors"`
	SilentProtectedTargets map[uint]ProtectedEntry `json:"silentProtectedTargets"`
}

// PruneSilences 删除已过期的禁言记录，返回是否有变化。
func (d *DiceState) PruneSilences(now time.Time) bool {
	changed := false
	for userID, entry := range d.Silences {
		if !entry.Until.After(now) {
			delete(d.Silences, userID)
			changed = true
		}
	}
	return changed
}

// SilencedUntil 返回用户当前禁言的截止时间
func (d *DiceState) SilencedUntil(userID uint, now time.Time) (time.Time, bool) {
	entry, ok := d.Silences[userID]
	if !ok || !entry.Until.After(now) {
		return time.Time{}, false
	}
	return entry.Until, true
}

// ResetRound 清除上一轮的字段，保留禁言和面具颜色。
func (d *DiceState) ResetRound() {
	d.AskerID = nil
	d.TargetScope = nil
	d.TargetID = nil
	d.Question = nil
	d.Answer = nil
	d.AnsweredBy = nil
	d.LastOutcome = nil
	d.LastPenalty = nil
}

// CloseRound 以给定结果结束当前轮次并回到 IDLE。
func (d *DiceState) CloseRound(outcome DiceOutcome, penalty *DicePenalty) {
	d.Phase = DicePhaseIdle
	d.LastOutcome = &outcome
	d.LastPenalty = penalty
}

// CanRespond 判断用户在当前范围下是否有资格回应
func (d *DiceState) CanRespond(userID uint) bool {
	if d.TargetScope == nil {
		return false
	}
	switch *d.TargetScope {
	case DiceScopeSingle:
		return d.TargetID != nil && *d.TargetID == userID
	case DiceScopeAll:
		return d.AskerID == nil || *d.AskerID != userID
	}
	return false
}

// --- One Thing ---

type OneThingStatus string

const (
	OneThingIdle   OneThingStatus = "IDLE"
	OneThingActive OneThingStatus = "ACTIVE"
)

type OneThingShare struct {
	UserID    uint      `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type OneThingReaction struct {
	UserID       uint      `json:"userId"`
	TargetUserID uint      `json:"targetUserId"`
	Emoji        string    `json:"emoji"`
	CreatedAt    time.Time `json:"createdAt"`
}

type OneThingState struct {
	Status    OneThingStatus     `json:"status"`
	StartedAt *time.Time         `json:"startedAt"`
	StartedBy *uint              `json:"startedBy"`
	Shares    []OneThingShare    `json:"shares"`
	Reactions []OneThingReaction `json:"reactions"`
}

func (o *OneThingState) HasShared(userID uint) bool {
	for _, share := range o.Shares {
		if share.UserID == userID {
			return true
		}
	}
	return false
}

// --- Selected game ---

type SelectedGame struct {
	Type         GameType   `json:"type"`
	SelectedAt   *time.Time `json:"selectedAt"`
	SelectedByID *uint      `json:"selectedById"`
}

// GameState 是 room_game_states.data 中保存的完整文档。
// GameType 记录最近一次活动的游戏，仅为兼容保留，以 Selected 为准。
type GameState struct {
	SchemaVersion int           `json:"schemaVersion"`
	GameType      GameType      `json:"gameType"`
	Dice          DiceState     `json:"dice"`
	OneThing      OneThingState `json:"oneThing"`
	Selected      SelectedGame  `json:"selected"`
}

// NewGameState 返回一个全部为默认值的状态
func NewGameState() GameState {
	state := GameState{}
	state.applyDefaults()
	return state
}

// applyDefaults 补齐缺失字段，旧版本数据在这里完成兼容。
func (s *GameState) applyDefaults() {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = GameStateSchemaVersion
	}
	if s.GameType == "" {
		s.GameType = GameTypeNone
	}
	if s.Dice.Phase == "" {
		s.Dice.Phase = DicePhaseIdle
	}
	if s.Dice.Silences == nil {
		s.Dice.Silences = make(map[uint]SilenceEntry)
	}
	if s.Dice.MaskColors == nil {
		s.Dice.MaskColors = make(map[uint]string)
	}
	if s.Dice.SilentProtectedTargets == nil {
		s.Dice.SilentProtectedTargets = make(map[uint]ProtectedEntry)
	}
	if s.OneThing.Status == "" {
		s.OneThing.Status = OneThingIdle
	}
	if s.OneThing.Shares == nil {
		s.OneThing.Shares = []OneThingShare{}
	}
	if s.OneThing.Reactions == nil {
		s.OneThing.Reactions = []OneThingReaction{}
	}
	if s.Selected.Type == "" {
		s.Selected.Type = GameTypeNone
	}
}

// RoomGameState 每个房间一行，Version 用于比较并交换式的更新。
type RoomGameState struct {
	ID            uint           `gorm:"primaryKey"`
	RoomID        uint           `gorm:"uniqueIndex;not null"`
	SchemaVersion int            `gorm:"not null;default:1"`
	Data          datatypes.JSON `gorm:"not null"`
	Version       uint           `gorm:"not null;default:0"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

// ParseState 将 Data 字段解析为 GameState，并补齐默认值。
func (g *RoomGameState) ParseState() (GameState, error) {
	var state GameState
	if len(g.Data) == 0 || string(g.Data) == "null" {
		return NewGameState(), nil
	}
	if err := json.Unmarshal(g.Data, &state); err != nil {
		return GameState{}, fmt.Errorf("failed to unmarshal game state for room %d: %w", g.RoomID, err)
	}
	if state.SchemaVersion > GameStateSchemaVersion {
		return GameState{}, fmt.Errorf("game state for room %d has unsupported schema version %d", g.RoomID, state.SchemaVersion)
	}
	state.applyDefaults()
	return state, nil
}

// SetState 序列化 GameState 并写入 Data 字段。
func (g *RoomGameState) SetState(state GameState) error {
	state.applyDefaults()
	state.SchemaVersion = GameStateSchemaVersion
	bytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal game state for room %d: %w", g.RoomID, err)
	}
	g.Data = datatypes.JSON(bytes)
	g.SchemaVersion = GameStateSchemaVersion
	return nil
}
