package model

import (
	"regexp"
	"strings"
	"time"
)

// 配送先住所
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//「自宅」「職場」など
	Label string `gorm:"type:varchar(50)" json:"label"`

	//宛名
	FullName string `gorm:"type:varchar(255);not null" json:"full_name"`

	//電話番号
	Phone string `gorm:"type:varchar(30);not null" json:"phone"`

	//番地など
	Street string `gorm:"type:varchar(255);not null" json:"street"`

	City  string `gorm:"type:varchar(255);not null" json:"city"`
	State string `gorm:"type:varchar(100)" json:"state"`

	//郵便番号（6桁）
	Pincode string `gorm:"type:varchar(10);not null" json:"pincode"`

	//このユーザーのデフォルト住所か（ユーザー内で1つだけ）
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Validateは必須項目と郵便番号の形式をチェックする。
// 最初に見つかった不備を返す。
func (a Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"pincode", a.Pincode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, r.field+" is required")
		}
	}
	if !pincodePattern.MatchString(strings.TrimSpace(a.Pincode)) {
		return NewValidationError("pincode", "pincode must be exactly 6 digits")
	}
	return nil
}
