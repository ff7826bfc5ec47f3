package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"party-rooms/internal/domain"
	"party-rooms/internal/dto"
	"party-rooms/internal/service"
)

// GameHandler 处理骰子真心话与"一件事"两个房间游戏
type GameHandler struct {
	diceService     *service.DiceService
	oneThingService *service.OneThingService
}

func NewGameHandler(diceService *service.DiceService, oneThingService *service.OneThingService) *GameHandler {
	if diceService == nil {
		panic("DiceService cannot be nil for GameHandler")
	}
	if oneThingService == nil {
		panic("OneThingService cannot be nil for GameHandler")
	}
	return &GameHandler{diceService: diceService, oneThingService: oneThingService}
}

type diceAction func(ctx context.Context, actor service.Actor, roomID uint) (*domain.DiceState, error)

func (h *GameHandler) dice(c *gin.Context, action diceAction) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	state, err := action(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, state)
}

func (h *GameHandler) GetDice(c *gin.Context)    { h.dice(c, h.diceService.Get) }
func (h *GameHandler) StartDice(c *gin.Context)  { h.dice(c, h.diceService.Start) }
func (h *GameHandler) RefuseDice(c *gin.Context) { h.dice(c, h.diceService.Refuse) }
func (h *GameHandler) SkipDice(c *gin.Context)   { h.dice(c, h.diceService.Skip) }

func (h *GameHandler) AskDice(c *gin.Context) {
	var req dto.DiceAskRequest
	if !bindJSON(c, &req) {
		return
	}
	h.dice(c, func(ctx context.Context, actor service.Actor, roomID uint) (*domain.DiceState, error) {
		return h.diceService.Ask(ctx, actor, roomID, req)
	})
}

func (h *GameHandler) RespondDice(c *gin.Context) {
	var req dto.DiceRespondRequest
	if !bindJSON(c, &req) {
		return
	}
	h.dice(c, func(ctx context.Context, actor service.Actor, roomID uint) (*domain.DiceState, error) {
		return h.diceService.Respond(ctx, actor, roomID, req.Answer)
	})
}

// ProtectDice 路径 /dice/protect/:kind，kind 为 skip、silent 或 observer
func (h *GameHandler) ProtectDice(c *gin.Context) {
	kind := c.Param("kind")
	h.dice(c, func(ctx context.Context, actor service.Actor, roomID uint) (*domain.DiceState, error) {
		return h.diceService.Protect(ctx, actor, roomID, kind)
	})
}

type oneThingAction func(ctx context.Context, actor service.Actor, roomID uint) (*domain.OneThingState, error)

func (h *GameHandler) oneThing(c *gin.Context, action oneThingAction) {
	actor, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	state, err := action(c.Request.Context(), actor, roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, state)
}

func (h *GameHandler) GetOneThing(c *gin.Context)    { h.oneThing(c, h.oneThingService.Get) }
func (h *GameHandler) StartOneThing(c *gin.Context)  { h.oneThing(c, h.oneThingService.Start) }
func (h *GameHandler) FinishOneThing(c *gin.Context) { h.oneThing(c, h.oneThingService.Finish) }

func (h *GameHandler) ShareOneThing(c *gin.Context) {
	var req dto.OneThingShareRequest
	if !bindJSON(c, &req) {
		return
	}
	h.oneThing(c, func(ctx context.Context, actor service.Actor, roomID uint) (*domain.OneThingState, error) {
		return h.oneThingService.Share(ctx, actor, roomID, req.Content)
	})
}

func (h *GameHandler) ReactOneThing(c *gin.Context) {
	var req dto.OneThingReactRequest
	if !bindJSON(c, &req) {
		return
	}
	h.oneThing(c, func(ctx context.Context, actor service.Actor, roomID uint) (*domain.OneThingState, error) {
		return h.oneThingService.React(ctx, actor, roomID, req)
	})
}
