package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/vending-machine/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default(10)

	ids := make([]model.ProductID, 0)
	for _, p := range c.Products() {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []model.ProductID{model.Cola, model.Chips, model.Candy}, ids)

	tests := []struct {
		id    model.ProductID
		price model.Cents
	}{
		{id: model.Cola, price: 100},
		{id: model.Chips, price: 50},
		{id: model.Candy, price: 65},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			price, err := c.Price(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.price, price)

			stock, err := c.Stock(tt.id)
			require.NoError(t, err)
			assert.Equal(t, 10, stock)
		})
	}
}

func TestUnknownProduct(t *testing.T) {
	c := Default(1)

	_, err := c.Price("gum")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = c.InStock("gum")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	assert.ErrorIs(t, c.SetStock("gum", 3), ErrUnknownProduct)
	assert.False(t, c.Has("gum"))
}

func TestSetStockAndDecrement(t *testing.T) {
	c := Default(1)

	in, err := c.InStock(model.Candy)
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, c.Decrement(model.Candy))
	in, err = c.InStock(model.Candy)
	require.NoError(t, err)
	assert.False(t, in)

	assert.ErrorIs(t, c.Decrement(model.Candy), ErrNegativeStock)
	assert.ErrorIs(t, c.SetStock(model.Candy, -1), ErrNegativeStock)

	require.NoError(t, c.SetStock(model.Candy, 7))
	stock, err := c.Stock(model.Candy)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	_, err := New(map[model.ProductID]model.Cents{"free": 0}, 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = New(map[model.ProductID]model.Cents{model.Cola: 100}, -1)
	assert.ErrorIs(t, err, ErrNegativeStock)
}

func TestProductsAreCopies(t *testing.T) {
	c := Default(5)
	products := c.Products()
	products[0].Stock = 0

	stock, err := c.Stock(products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)
}
