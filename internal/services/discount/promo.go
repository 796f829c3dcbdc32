package discount

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	promoAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultPromoPrefix = "PROMO"
	defaultPromoLength = 6
)

// GenerateCode возвращает prefix и length случайных символов из A-Z0-9.
// Пустой prefix и неположительная длина заменяются значениями по умолчанию.
func GenerateCode(prefix string, length int) (string, error) {
	if prefix == "" {
		prefix = defaultPromoPrefix
	}
	if length <= 0 {
		length = defaultPromoLength
	}

	limit := big.NewInt(int64(len(promoAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate promo code: %w", err)
		}
		buf[i] = promoAlphabet[n.Int64()]
	}
	return prefix + string(buf), nil
}
