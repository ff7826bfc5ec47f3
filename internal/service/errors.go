package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"party-rooms/internal/repository"
)

// Error 是服务层返回给调用方的业务错误，Code 是稳定的错误码。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 通用错误
var (
	ErrInternalServer       = newError("INTERNAL_ERROR", "internal server error")
	ErrInvalidInput         = newError("INVALID_INPUT", "invalid input")
	ErrForbidden            = newError("FORBIDDEN", "operation not allowed for this user")
	ErrConflict             = newError("CONFLICT", "concurrent update detected, please retry")
	ErrUserNotFound         = newError("USER_NOT_FOUND", "user not found")
	ErrAuthenticationFailed = newError("AUTHENTICATION_FAILED", "authentication failed")
	ErrRegistrationFailed   = newError("REGISTRATION_FAILED", "registration failed: username already exists")
)

// 房间与成员
var (
	ErrRoomNotFound         = newError("ROOM_NOT_FOUND", "room not found")
	ErrInvalidCapacity      = newError("INVALID_CAPACITY", "capacity must be at least 3")
	ErrStatusRequired       = newError("STATUS_REQUIRED", "official rooms must specify a status")
	ErrInvalidStatus        = newError("INVALID_STATUS", "invalid room status")
	ErrInvalidMode          = newError("INVALID_MODE", "mode must be PARTICIPANT or OBSERVER")
	ErrRoomEnded            = newError("ROOM_ENDED", "room has ended")
	ErrRoomNotAvailable     = newError("ROOM_NOT_AVAILABLE", "room is not available")
	ErrSpectatorsNotAllowed = newError("SPECTATORS_NOT_ALLOWED", "room does not allow spectators")
	ErrRoomFull             = newError("ROOM_FULL", "room is full")
	ErrMembershipNotFound   = newError("MEMBERSHIP_NOT_FOUND", "membership not found")
	ErrNotMember            = newError("NOT_MEMBER", "user is not an active member of the room")
	ErrNotParticipant       = newError("NOT_PARTICIPANT", "user is not an active participant of the room")
	ErrRoomNotScheduled     = newError("ROOM_NOT_SCHEDULED", "room is not scheduled")
	ErrRoomNotLive          = newError("ROOM_NOT_LIVE", "room is not live")
)

// 入房申请、邀请与分享链接
var (
	ErrJoinRequestNotFound       = newError("JOIN_REQUEST_NOT_FOUND", "join request not found")
	ErrJoinRequestNotPending     = newError("JOIN_REQUEST_NOT_PENDING", "join request is not pending")
	ErrAlreadyMember             = newError("ALREADY_MEMBER", "user is already a member of the room")
	ErrAlreadyInOtherRoom        = newError("ALREADY_IN_OTHER_ROOM", "user is already active in another room")
	ErrInviteNotFound            = newError("INVITE_NOT_FOUND", "invite not found")
	ErrInviteNotPending          = newError("INVITE_NOT_PENDING", "invite is not pending")
	ErrInviteeNotEligible        = newError("INVITEE_NOT_ELIGIBLE", "invitee has no mutual conversation with inviter")
	ErrShareLinkNotFound         = newError("SHARE_LINK_NOT_FOUND", "share link not found")
	ErrShareLinkRevoked          = newError("SHARE_LINK_REVOKED", "share link has been revoked")
	ErrShareLinkExpired          = newError("SHARE_LINK_EXPIRED", "share link has expired")
	ErrShareLinkGenerationFailed = newError("SHARE_LINK_GENERATION_FAILED", "could not generate a unique share link")
	ErrInvalidExpiry             = newError("INVALID_EXPIRY", "expiry must be a positive number of minutes")
)

// 游戏
var (
	ErrDiceRoundActive      = newError("DICE_ROUND_ACTIVE", "a dice round is already active")
	ErrNoParticipants       = newError("NO_PARTICIPANTS", "no active participants in the room")
	ErrDiceInvalidPhase     = newError("DICE_INVALID_PHASE", "action not allowed in the current dice phase")
	ErrDiceNotAsker         = newError("DICE_NOT_ASKER", "only the current asker can do this")
	ErrDiceQuestionRequired = newError("DICE_QUESTION_REQUIRED", "question is required")
	ErrDiceAnswerRequired   = newError("DICE_ANSWER_REQUIRED", "answer is required")
	ErrDiceInvalidTarget    = newError("DICE_INVALID_TARGET", "invalid dice target")
	ErrDiceNotEligible      = newError("DICE_NOT_ELIGIBLE", "user is not eligible to respond")
	ErrDiceInvalidProtect   = newError("DICE_INVALID_PROTECT", "protect kind must be skip, silent or observer")
	ErrDiceSilenced         = newError("DICE_SILENCED", "user is silenced")

	ErrOneThingAlreadyActive  = newError("ONE_THING_ALREADY_ACTIVE", "one thing is already active")
	ErrOneThingNotActive      = newError("ONE_THING_NOT_ACTIVE", "one thing is not active")
	ErrOneThingAlreadyShared  = newError("ONE_THING_ALREADY_SHARED", "user has already shared")
	ErrOneThingInvalidContent = newError("ONE_THING_INVALID_CONTENT", "content must be 1 to 200 characters")
	ErrOneThingInvalidEmoji   = newError("ONE_THING_INVALID_EMOJI", "emoji is not allowed")
	ErrOneThingTargetNotShare = newError("ONE_THING_TARGET_NOT_SHARED", "target user has not shared")

	ErrInvalidGameType       = newError("INVALID_GAME_TYPE", "game type must be NONE, DICE or ONE_THING")
	ErrMessageInvalidContent = newError("MESSAGE_INVALID_CONTENT", "message must be 1 to 500 characters")
	ErrUnknownEvent          = newError("UNKNOWN_EVENT", "unknown event type")
)

// SilencedError 表示用户处于禁言期，Until 为禁言结束时间。
type SilencedError struct {
	Until time.Time
}

func (e *SilencedError) Error() string {
	return fmt.Sprintf("user is silenced until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is 使 errors.Is(err, ErrDiceSilenced) 对 SilencedError 成立
func (e *SilencedError) Is(target error) bool {
	return target == ErrDiceSilenced
}

// ErrorCode 返回错误对应的错误码，未知错误一律视为内部错误。
func ErrorCode(err error) string {
	var silenced *SilencedError
	if errors.As(err, &silenced) {
		return ErrDiceSilenced.Code
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ErrInternalServer.Code
}

// isServiceError 判断错误是否已经是业务错误
func isServiceError(err error) bool {
	var silenced *SilencedError
	var svcErr *Error
	return errors.As(err, &silenced) || errors.As(err, &svcErr)
}

// mapRepoError 将存储层错误映射为业务错误。
// 业务错误原样返回，其余错误记录日志后统一为 ErrInternalServer。
func mapRepoError(logCtx *logrus.Entry, err error, msg string) error {
	if err == nil {
		return nil
	}
	if isServiceError(err) {
		return err
	}
	if errors.Is(err, repository.ErrOptimisticLock) {
		logCtx.WithError(err).Warn(msg)
		return ErrConflict
	}
	logCtx.WithError(err).Error(msg)
	return ErrInternalServer
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
