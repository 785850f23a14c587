package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// InvoiceClaim is embedded in the QR code printed on invoice PDFs.
type InvoiceClaim struct {
	InvoiceId int    `json:"invoice_id"`
	Number    string `json:"number"`
	Total     string `json:"total"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return []byte("DigitSoft-Secret")
	}
	return []byte(secret)
}

func InvoiceTokenGenerate(invoiceId int, number string, total string, issuedAt time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &InvoiceClaim{
		InvoiceId: invoiceId,
		Number:    number,
		Total:     total,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: issuedAt.Unix(),
			Subject:  number,
		},
	})
	return t.SignedString(getJwtSecret())
}

func InvoiceTokenValidate(token string) (*InvoiceClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &InvoiceClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
	if err != nil {
		return nil, NewValidationError("invalid verification token")
	}
	claim, ok := parsed.Claims.(*InvoiceClaim)
	if !ok || !parsed.Valid {
		return nil, NewValidationError("invalid verification token")
	}
	return claim, nil
}
