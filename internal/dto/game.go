package dto

type DiceAskRequest struct {
	Question    string `json:"question"`
	TargetScope string `json:"targetScope"`
	TargetID    *uint  `json:"targetId"`
}

type DiceRespondRequest struct {
	Answer string `json:"answer"`
}

type DiceProtectRequest struct {
	Kind string `json:"kind"`
}

type OneThingShareRequest struct {
	Content string `json:"content"`
}

type OneThingReactRequest struct {
	TargetUserID uint   `json:"targetUserId" binding:"required"`
	Emoji        string `json:"emoji" binding:"required"`
}

type SelectGameRequest struct {
	Type string `json:"type" binding:"required"`
}
