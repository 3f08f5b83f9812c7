package repository

import (
	"context"
	"errors"
	"time"

	"github.com/unimarket/backend/internal/model"
	"gorm.io/gorm"
)

type ChatRepository interface {
	// FindOrCreate returns the conversation for (productID, buyerUID),
	// creating it if absent. A duplicate-key error from a concurrent
	// creation is resolved by re-reading the winner's row, in which case
	// created is false.
	FindOrCreate(ctx context.Context, productID uint64, buyerUID, sellerUID string) (cv *model.Conversation, created bool, err error)
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByUser(ctx context.Context, uid string, limit int) ([]model.Conversation, error)
	// CreateMessage inserts the message and bumps the conversation's
	// updated_at in the same transaction.
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, convID uint64) ([]model.Message, error)
	// MarkRead flips unread messages not authored by uid and returns the
	// number of rows changed.
	MarkRead(ctx context.Context, convID uint64, uid string) (int64, error)
	LastMessages(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error)
	UnreadCounts(ctx context.Context, convIDs []uint64, uid string) (map[uint64]int64, error)
	SetDB(db *gorm.DB)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *chatRepository) FindOrCreate(ctx context.Context, productID uint64, buyerUID, sellerUID string) (*model.Conversation, bool, error) {
	if r.db == nil {
		return nil, false, ErrDBNotReady
	}
	var cv model.Conversation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND buyer_uid = ?", productID, buyerUID).
		First(&cv).Error
	if err == nil {
		return &cv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	cv = model.Conversation{ProductID: productID, BuyerUID: buyerUID, SellerUID: sellerUID}
	err = r.db.WithContext(ctx).Create(&cv).Error
	if err == nil {
		return &cv, true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the race; someone created it between our read and write
		var existing model.Conversation
		if err := r.db.WithContext(ctx).
			Where("product_id = ? AND buyer_uid = ?", productID, buyerUID).
			First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return nil, false, err
}

func (r *chatRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *chatRepository) FindByUser(ctx context.Context, uid string, limit int) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	q := r.db.WithContext(ctx).
		Where("buyer_uid = ? OR seller_uid = ?", uid, uid).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, convID uint64) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *chatRepository) MarkRead(ctx context.Context, convID uint64, uid string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND sender_uid != ? AND is_read = ?", convID, uid, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *chatRepository) LastMessages(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&model.Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", convIDs).
			Group("conversation_id")).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

type unreadRow struct {
	ConversationID uint64
	Count          int64
}

func (r *chatRepository) UnreadCounts(ctx context.Context, convIDs []uint64, uid string) (map[uint64]int64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]int64, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	var rows []unreadRow
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND sender_uid != ? AND is_read = ?", convIDs, uid, false).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ConversationID] = row.Count
	}
	return out, nil
}
