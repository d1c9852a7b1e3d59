package seed

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-shop-checkout/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRunIsRepeatable(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, Run(ctx, st, bcrypt.MinCost))
	require.NoError(t, Run(ctx, st, bcrypt.MinCost))

	products, err := st.ListActiveProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, "Laptop ASUS ROG Strix G15", products[0].Name)
	assert.Equal(t, "15000000", products[0].Price.String())
	assert.Equal(t, 10, products[0].Stock)

	u, err := st.UserByEmail(ctx, "test@ecommerce.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(DefaultPassword)))
}
