// Package catalog содержит каталог товаров автомата: цены и остатки.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmeshcher/vending-machine/internal/model"
)

var (
	// ErrUnknownProduct возвращается при обращении к товару, которого нет в каталоге.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrNegativeStock возвращается при попытке установить отрицательный остаток.
	ErrNegativeStock = errors.New("stock level must not be negative")
	// ErrInvalidPrice возвращается при попытке задать неположительную цену.
	ErrInvalidPrice = errors.New("price must be positive")
)

// Catalog хранит неизменяемый набор товаров с изменяемыми остатками.
type Catalog struct {
	order    []model.ProductID
	products map[model.ProductID]*model.Product
}

// New создаёт каталог по таблице цен. Все товары получают одинаковый начальный остаток.
func New(prices map[model.ProductID]model.Cents, initialStock int) (*Catalog, error) {
	if initialStock < 0 {
		return nil, ErrNegativeStock
	}

	c := &Catalog{
		order:    make([]model.ProductID, 0, len(prices)),
		products: make(map[model.ProductID]*model.Product, len(prices)),
	}
	for id, price := range prices {
		if price <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, id)
		}
		c.order = append(c.order, id)
		c.products[id] = &model.Product{ID: id, Price: price, Stock: initialStock}
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })

	return c, nil
}

// Default возвращает каталог из трёх товаров: cola, chips и candy.
func Default(initialStock int) *Catalog {
	c, err := New(map[model.ProductID]model.Cents{
		model.Cola:  100,
		model.Chips: 50,
		model.Candy: 65,
	}, initialStock)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) lookup(id model.ProductID) (*model.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

// Price возвращает цену товара.
func (c *Catalog) Price(id model.ProductID) (model.Cents, error) {
	p, err := c.lookup(id)
	if err != nil {
		return 0, err
	}
	return p.Price, nil
}

// Stock возвращает остаток товара.
func (c *Catalog) Stock(id model.ProductID) (int, error) {
	p, err := c.lookup(id)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// InStock сообщает, есть ли товар в наличии.
func (c *Catalog) InStock(id model.ProductID) (bool, error) {
	p, err := c.lookup(id)
	if err != nil {
		return false, err
	}
	return p.Stock > 0, nil
}

// SetStock устанавливает остаток товара.
func (c *Catalog) SetStock(id model.ProductID, level int) error {
	if level < 0 {
		return ErrNegativeStock
	}
	p, err := c.lookup(id)
	if err != nil {
		return err
	}
	p.Stock = level
	return nil
}

// Decrement уменьшает остаток товара на единицу после выдачи.
func (c *Catalog) Decrement(id model.ProductID) error {
	p, err := c.lookup(id)
	if err != nil {
		return err
	}
	if p.Stock == 0 {
		return ErrNegativeStock
	}
	p.Stock--
	return nil
}

// Has сообщает, известен ли товар каталогу.
func (c *Catalog) Has(id model.ProductID) bool {
	_, ok := c.products[id]
	return ok
}

// Products возвращает копии всех товаров, упорядоченные по идентификатору.
func (c *Catalog) Products() []model.Product {
	out := make([]model.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.products[id])
	}
	return out
}

// Prices возвращает цены всех товаров в порядке Products.
func (c *Catalog) Prices() []model.Cents {
	out := make([]model.Cents, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id].Price)
	}
	return out
}
