package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := InvoiceTokenGenerate(7, "F202403010001", "238.00", time.Now())
	require.NoError(t, err)

	claim, err := InvoiceTokenValidate(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claim.InvoiceId)
	assert.Equal(t, "F202403010001", claim.Number)

	t.Setenv("JWT_SECRET", "other-secret")
	_, err = InvoiceTokenValidate(token)
	assert.Equal(t, ErrorKindValidation, KindOf(err))
}
