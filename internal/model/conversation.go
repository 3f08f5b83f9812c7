package model

import "time"

// Conversation ties a buyer to a product's seller. At most one exists per
// (product, buyer) pair; the seller is captured at creation time and never
// rewritten, even if the listing changes hands later.
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint64    `gorm:"column:product_id;index:idx_product_buyer,unique" json:"productId"`
	BuyerUID  string    `gorm:"column:buyer_uid;size:128;index:idx_product_buyer,unique" json:"buyerUid"`
	SellerUID string    `gorm:"column:seller_uid;size:128;index" json:"sellerUid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Participant reports whether uid is the buyer or the seller.
func (c *Conversation) Participant(uid string) bool {
	return c.BuyerUID == uid || c.SellerUID == uid
}

// Counterpart returns the other participant's uid. Callers are expected to
// have checked Participant first.
func (c *Conversation) Counterpart(uid string) string {
	if c.BuyerUID == uid {
		return c.SellerUID
	}
	return c.BuyerUID
}
