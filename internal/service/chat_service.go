package service

import (
	"context"
	"errors"
	"strings"

	"github.com/unimarket/backend/internal/model"
	"github.com/unimarket/backend/internal/repository"
	"gorm.io/gorm"
)

const maxConversationList = 200

// UserSummary is the counterpart/sender display identity attached to chat
// responses.
type UserSummary struct {
	UID      string  `json:"uid"`
	Nickname string  `json:"nickname"`
	PhotoURL *string `json:"photoUrl,omitempty"`
}

type ConversationDetail struct {
	Conversation model.Conversation `json:"conversation"`
	Product      *model.Product     `json:"product,omitempty"`
	Counterpart  UserSummary        `json:"otherUser"`
}

type ConversationSummary struct {
	Conversation model.Conversation `json:"conversation"`
	Product      *model.Product     `json:"product,omitempty"`
	Counterpart  UserSummary        `json:"otherUser"`
	LastMessage  *model.Message     `json:"lastMessage,omitempty"`
	UnreadCount  int64              `json:"unreadCount"`
}

// ChatService owns the conversation/message rules shared by the REST and
// WebSocket gateways. Mutating operations persist first, then broadcast;
// delivery problems never undo or mask a committed write.
type ChatService interface {
	ResolveOrCreate(ctx context.Context, productID uint64, uid string) (*ConversationDetail, error)
	ListConversations(ctx context.Context, uid string) ([]ConversationSummary, error)
	GetConversation(ctx context.Context, convID uint64, uid string) (*ConversationDetail, error)
	// ListMessages returns the full history ascending and, as a side
	// effect, marks messages not authored by uid as read.
	ListMessages(ctx context.Context, convID uint64, uid string) ([]model.Message, error)
	SendMessage(ctx context.Context, convID uint64, uid, body string) (*model.Message, error)
	// MarkRead returns the counterpart's uid for notification routing.
	MarkRead(ctx context.Context, convID uint64, uid string) (string, error)
}

type chatService struct {
	chatRepo    repository.ChatRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	broadcaster Broadcaster
}

func NewChatService(chatRepo repository.ChatRepository, productRepo repository.ProductRepository, userRepo repository.UserRepository, broadcaster Broadcaster) ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
	}
}

func (s *chatService) ResolveOrCreate(ctx context.Context, productID uint64, uid string) (*ConversationDetail, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if product.SellerUID == "" {
		return nil, ErrNotFound
	}
	if product.SellerUID == uid {
		return nil, ErrSelfChat
	}
	cv, created, err := s.chatRepo.FindOrCreate(ctx, productID, uid, product.SellerUID)
	if err != nil {
		return nil, err
	}
	if created {
		s.broadcaster.PublishToUser(cv.BuyerUID, EventConversationUpdated, ConversationRef{ConversationID: cv.ID})
		s.broadcaster.PublishToUser(cv.SellerUID, EventConversationUpdated, ConversationRef{ConversationID: cv.ID})
	}
	return &ConversationDetail{
		Conversation: *cv,
		Product:      product,
		Counterpart:  s.userSummary(ctx, cv.Counterpart(uid)),
	}, nil
}

func (s *chatService) ListConversations(ctx context.Context, uid string) ([]ConversationSummary, error) {
	convs, err := s.chatRepo.FindByUser(ctx, uid, maxConversationList)
	if err != nil {
		return nil, err
	}
	convIDs := make([]uint64, 0, len(convs))
	productIDs := make([]uint64, 0, len(convs))
	otherUIDs := make([]string, 0, len(convs))
	for _, cv := range convs {
		convIDs = append(convIDs, cv.ID)
		productIDs = append(productIDs, cv.ProductID)
		otherUIDs = append(otherUIDs, cv.Counterpart(uid))
	}

	products, err := s.productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindByUIDs(ctx, otherUIDs)
	if err != nil {
		return nil, err
	}
	lastMsgs, err := s.chatRepo.LastMessages(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.chatRepo.UnreadCounts(ctx, convIDs, uid)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, cv := range convs {
		summary := ConversationSummary{
			Conversation: cv,
			Counterpart:  summaryFor(users, cv.Counterpart(uid)),
			UnreadCount:  unread[cv.ID],
		}
		if p, ok := products[cv.ProductID]; ok {
			prod := p
			summary.Product = &prod
		}
		if m, ok := lastMsgs[cv.ID]; ok {
			msg := m
			summary.LastMessage = &msg
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *chatService) GetConversation(ctx context.Context, convID uint64, uid string) (*ConversationDetail, error) {
	cv, err := s.authorize(ctx, convID, uid)
	if err != nil {
		return nil, err
	}
	detail := &ConversationDetail{
		Conversation: *cv,
		Counterpart:  s.userSummary(ctx, cv.Counterpart(uid)),
	}
	if product, err := s.productRepo.FindByID(ctx, cv.ProductID); err == nil {
		detail.Product = product
	}
	return detail, nil
}

func (s *chatService) ListMessages(ctx context.Context, convID uint64, uid string) ([]model.Message, error) {
	cv, err := s.authorize(ctx, convID, uid)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chatRepo.ListMessages(ctx, convID)
	if err != nil {
		return nil, err
	}
	// Opening the history counts as reading it. The returned rows keep
	// their pre-update flags, matching what the reader was shown.
	if _, err := s.chatRepo.MarkRead(ctx, cv.ID, uid); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *chatService) SendMessage(ctx context.Context, convID uint64, uid, body string) (*model.Message, error) {
	cv, err := s.authorize(ctx, convID, uid)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrInvalidArgument
	}
	msg := &model.Message{
		ConversationID: cv.ID,
		SenderUID:      uid,
		SenderName:     s.userSummary(ctx, uid).Nickname,
		Body:           body,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.broadcaster.PublishToConversation(cv.ID, EventNewMessage, msg)
	s.broadcaster.PublishToUser(cv.BuyerUID, EventConversationUpdated, ConversationRef{ConversationID: cv.ID})
	s.broadcaster.PublishToUser(cv.SellerUID, EventConversationUpdated, ConversationRef{ConversationID: cv.ID})
	return msg, nil
}

func (s *chatService) MarkRead(ctx context.Context, convID uint64, uid string) (string, error) {
	cv, err := s.authorize(ctx, convID, uid)
	if err != nil {
		return "", err
	}
	affected, err := s.chatRepo.MarkRead(ctx, cv.ID, uid)
	if err != nil {
		return "", err
	}
	other := cv.Counterpart(uid)
	if affected > 0 {
		s.broadcaster.PublishToUser(other, EventMessagesRead, ConversationRef{ConversationID: cv.ID})
	}
	return other, nil
}

func (s *chatService) authorize(ctx context.Context, convID uint64, uid string) (*model.Conversation, error) {
	cv, err := s.chatRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.Participant(uid) {
		return nil, ErrForbidden
	}
	return cv, nil
}

func (s *chatService) userSummary(ctx context.Context, uid string) UserSummary {
	u, err := s.userRepo.FindByUID(ctx, uid)
	if err != nil {
		// Profile rows are written by the account subsystem; a missing
		// one degrades to the bare uid instead of failing the request.
		return UserSummary{UID: uid, Nickname: uid}
	}
	return UserSummary{UID: u.UID, Nickname: u.Nickname, PhotoURL: u.PhotoURL}
}

func summaryFor(users map[string]model.User, uid string) UserSummary {
	if u, ok := users[uid]; ok {
		return UserSummary{UID: u.UID, Nickname: u.Nickname, PhotoURL: u.PhotoURL}
	}
	return UserSummary{UID: uid, Nickname: uid}
}
