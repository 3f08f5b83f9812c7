package model

import "time"

// Product is owned by the listing subsystem; chat only reads it to resolve
// the seller and to decorate conversation summaries.
type Product struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerUID string    `gorm:"column:seller_uid;size:128;index" json:"sellerUid"`
	Title     string    `gorm:"size:120;not null" json:"title"`
	Price     uint      `gorm:"not null" json:"price"`
	ImageURL  *string   `gorm:"size:512" json:"imageUrl"`
	Status    string    `gorm:"size:32;default:available" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}
