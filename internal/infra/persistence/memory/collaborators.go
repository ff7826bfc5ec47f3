package memorypersistence

import (
	"context"
	"time"

	"party-rooms/internal/domain"
	"party-rooms/internal/repository"
)

type memInvites struct{ s *MemoryStore }

func (r memInvites) FindByID(_ context.Context, id uint) (*domain.RoomInvite, error) {
	defer r.s.guard()()
	invite, ok := r.s.data.invites[id]
	if !ok {
		return nil, repository.ErrInviteNotFound
	}
	return &invite, nil
}

func (r memInvites) FindPending(_ context.Context, roomID, inviteeID uint) (*domain.RoomInvite, error) {
	defer r.s.guard()()
	all := sortedByID(r.s.data.invites)
	for i := len(all) - 1; i >= 0; i-- {
		invite := all[i]
		if invite.RoomID == roomID && invite.InviteeID == inviteeID && invite.Status == domain.InviteStatusPending {
			return &invite, nil
		}
	}
	return nil, repository.ErrInviteNotFound
}

func (r memInvites) ListPendingByInvitee(_ context.Context, inviteeID uint) ([]domain.RoomInvite, error) {
	defer r.s.guard()()
	invites := []domain.RoomInvite{}
	all := sortedByID(r.s.data.invites)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].InviteeID == inviteeID && all[i].Status == domain.InviteStatusPending {
			invites = append(invites, all[i])
		}
	}
	return invites, nil
}

func (r memInvites) Create(_ context.Context, invite *domain.RoomInvite) error {
	defer r.s.guard()()
	now := time.Now()
	invite.ID = r.s.data.nextID()
	invite.CreatedAt = now
	invite.UpdatedAt = now
	r.s.data.invites[invite.ID] = *invite
	return nil
}

func (r memInvites) Save(_ context.Context, invite *domain.RoomInvite) error {
	defer r.s.guard()()
	if _, ok := r.s.data.invites[invite.ID]; !ok {
		return repository.ErrInviteNotFound
	}
	invite.UpdatedAt = time.Now()
	r.s.data.invites[invite.ID] = *invite
	return nil
}

type memJoinRequests struct{ s *MemoryStore }

func (r memJoinRequests) find(roomID, userID uint) (domain.RoomJoinRequest, bool) {
	for _, request := range r.s.data.joinRequests {
		if request.RoomID == roomID && request.UserID == userID {
			return request, true
		}
	}
	return domain.RoomJoinRequest{}, false
}

func (r memJoinRequests) Find(_ context.Context, roomID, userID uint) (*domain.RoomJoinRequest, error) {
	defer r.s.guard()()
	request, ok := r.find(roomID, userID)
	if !ok {
		return nil, repository.ErrJoinRequestNotFound
	}
	return &request, nil
}

func (r memJoinRequests) FindByID(_ context.Context, id uint) (*domain.RoomJoinRequest, error) {
	defer r.s.guard()()
	request, ok := r.s.data.joinRequests[id]
	if !ok {
		return nil, repository.ErrJoinRequestNotFound
	}
	return &request, nil
}

func (r memJoinRequests) ListByRoom(_ context.Context, roomID uint, status domain.JoinRequestStatus) ([]domain.RoomJoinRequest, error) {
	defer r.s.guard()()
	requests := []domain.RoomJoinRequest{}
	for _, request := range sortedByID(r.s.data.joinRequests) {
		if request.RoomID != roomID {
			continue
		}
		if status != "" && request.Status != status {
			continue
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (r memJoinRequests) Upsert(_ context.Context, request *domain.RoomJoinRequest) error {
	defer r.s.guard()()
	now := time.Now()
	if existing, ok := r.find(request.RoomID, request.UserID); ok {
		request.ID = existing.ID
		request.CreatedAt = existing.CreatedAt
	} else {
		request.ID = r.s.data.nextID()
		request.CreatedAt = now
	}
	request.Status = domain.JoinRequestPending
	request.DecidedAt = nil
	request.DecidedByID = nil
	request.UpdatedAt = now
	r.s.data.joinRequests[request.ID] = *request
	return nil
}

func (r memJoinRequests) Save(_ context.Context, request *domain.RoomJoinRequest) error {
	defer r.s.guard()()
	if _, ok := r.s.data.joinRequests[request.ID]; !ok {
		return repository.ErrJoinRequestNotFound
	}
	request.UpdatedAt = time.Now()
	r.s.data.joinRequests[request.ID] = *request
	return nil
}

type memShareLinks struct{ s *MemoryStore }

func (r memShareLinks) Create(_ context.Context, link *domain.RoomShareLink) error {
	defer r.s.guard()()
	for _, existing := range r.s.data.shareLinks {
		if existing.Token == link.Token {
			return repository.ErrShareTokenTaken
		}
	}
	link.ID = r.s.data.nextID()
	link.CreatedAt = time.Now()
	r.s.data.shareLinks[link.ID] = *link
	return nil
}

func (r memShareLinks) FindByToken(_ context.Context, token string) (*domain.RoomShareLink, error) {
	defer r.s.guard()()
	for _, link := range r.s.data.shareLinks {
		if link.Token == token {
			return &link, nil
		}
	}
	return nil, repository.ErrShareLinkNotFound
}

func (r memShareLinks) FindByID(_ context.Context, id uint) (*domain.RoomShareLink, error) {
	defer r.s.guard()()
	link, ok := r.s.data.shareLinks[id]
	if !ok {
		return nil, repository.ErrShareLinkNotFound
	}
	return &link, nil
}

func (r memShareLinks) ListByRoom(_ context.Context, roomID uint) ([]domain.RoomShareLink, error) {
	defer r.s.guard()()
	links := []domain.RoomShareLink{}
	all := sortedByID(r.s.data.shareLinks)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].RoomID == roomID {
			links = append(links, all[i])
		}
	}
	return links, nil
}

func (r memShareLinks) Revoke(_ context.Context, id uint, at time.Time) error {
	defer r.s.guard()()
	link, ok := r.s.data.shareLinks[id]
	if !ok {
		return repository.ErrShareLinkNotFound
	}
	if link.RevokedAt == nil {
		revokedAt := at
		link.RevokedAt = &revokedAt
		r.s.data.shareLinks[id] = link
	}
	return nil
}

func (r memShareLinks) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	defer r.s.guard()()
	var deleted int64
	for id, link := range r.s.data.shareLinks {
		expired := link.ExpiresAt != nil && link.ExpiresAt.Before(before)
		revoked := link.RevokedAt != nil && link.RevokedAt.Before(before)
		if expired || revoked {
			delete(r.s.data.shareLinks, id)
			deleted++
		}
	}
	return deleted, nil
}

type memTraces struct{ s *MemoryStore }

func (r memTraces) Create(_ context.Context, trace *domain.Trace) error {
	defer r.s.guard()()
	trace.ID = r.s.data.nextID()
	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now()
	}
	r.s.data.traces[trace.ID] = *trace
	return nil
}

type memMessages struct{ s *MemoryStore }

func (r memMessages) Create(_ context.Context, message *domain.RoomMessage) error {
	defer r.s.guard()()
	message.ID = r.s.data.nextID()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.s.data.messages[message.ID] = *message
	return nil
}

func (r memMessages) List(_ context.Context, roomID uint, beforeID uint, limit int) ([]domain.RoomMessage, error) {
	defer r.s.guard()()
	matched := []domain.RoomMessage{}
	for _, message := range sortedByID(r.s.data.messages) {
		if message.RoomID != roomID {
			continue
		}
		if beforeID > 0 && message.ID >= beforeID {
			continue
		}
		matched = append(matched, message)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

type memConversations struct{ s *MemoryStore }

func (r memConversations) MutualPartnerIDs(_ context.Context, userID uint) ([]uint, error) {
	defer r.s.guard()()
	mine := make(map[uint]bool)
	for _, msg := range r.s.data.directMessages {
		if msg.SenderID == userID && !msg.DeletedAt.Valid {
			mine[msg.ConversationID] = true
		}
	}
	seen := make(map[uint]bool)
	partners := []uint{}
	for _, msg := range sortedByID(r.s.data.directMessages) {
		if msg.SenderID == userID || msg.DeletedAt.Valid || !mine[msg.ConversationID] || seen[msg.SenderID] {
			continue
		}
		seen[msg.SenderID] = true
		partners = append(partners, msg.SenderID)
	}
	return partners, nil
}

type memAudits struct{ s *MemoryStore }

func (r memAudits) Save(_ context.Context, entry *domain.AuditLog) error {
	defer r.s.guard()()
	entry.ID = r.s.data.nextID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.s.data.audits[entry.ID] = *entry
	return nil
}
