package qr

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/xelth-com/assetledger/internal/apperr"
	"gorm.io/gorm"
)

// maxTokenAttempts bounds regeneration on collision
const maxTokenAttempts = 5

// NewToken returns a random 128-bit identifier as 32 hex characters
func NewToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// freshToken returns a token not yet used by any asset or pre-generated tag.
// The unique indexes remain the final guard.
func freshToken(tx *gorm.DB, gen func() string, taken map[string]bool) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		tok := gen()
		if taken[tok] {
			continue
		}
		var n int64
		if err := tx.Table("assets").Where("qr_code_hash = ?", tok).Count(&n).Error; err != nil {
			return "", apperr.Internal(err, "could not check tag uniqueness")
		}
		if n > 0 {
			continue
		}
		if err := tx.Table("pre_generated_qrs").Where("qr_hash = ?", tok).Count(&n).Error; err != nil {
			return "", apperr.Internal(err, "could not check tag uniqueness")
		}
		if n > 0 {
			continue
		}
		return tok, nil
	}
	return "", apperr.Internal(nil, "could not generate a unique QR token")
}
