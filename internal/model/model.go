// Package model содержит доменные сущности торгового автомата.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cents описывает денежную сумму в центах.
type Cents int64

// String форматирует сумму в долларах с двумя знаками после запятой, например "$0.75".
func (c Cents) String() string {
	return "$" + decimal.New(int64(c), -2).StringFixed(2)
}

// Coin описывает жетон, опущенный в монетоприёмник. Распознанные номиналы
// перечислены константами ниже, любой другой жетон считается недействительным.
type Coin string

const (
	Nickel  Coin = "nickel"
	Dime    Coin = "dime"
	Quarter Coin = "quarter"
)

// ProductID идентифицирует товар в каталоге.
type ProductID string

const (
	Cola  ProductID = "cola"
	Chips ProductID = "chips"
	Candy ProductID = "candy"
)

// Product описывает товар каталога: цену и остаток.
type Product struct {
	ID    ProductID
	Price Cents
	Stock int
}

// Сообщения дисплея.
const (
	MessageInsertCoin  = "INSERT COIN"
	MessageExactChange = "EXACT CHANGE ONLY"
	MessageThankYou    = "THANK YOU"
	MessageSoldOut     = "SOLD OUT"
	messagePricePrefix = "PRICE "
)

// PriceMessage возвращает сообщение о цене товара, например "PRICE $1.00".
func PriceMessage(price Cents) string {
	return messagePricePrefix + price.String()
}

// Sale описывает завершённую продажу.
type Sale struct {
	ID         uuid.UUID
	Product    ProductID
	Price      Cents
	Paid       Cents
	Change     Cents
	ChangeOwed Cents
	SoldAt     time.Time
}
