// Package coinset содержит таблицу номиналов, принимаемых автоматом.
package coinset

import "github.com/mmeshcher/vending-machine/internal/model"

var values = map[model.Coin]model.Cents{
	model.Nickel:  5,
	model.Dime:    10,
	model.Quarter: 25,
}

// Порядок по убыванию номинала.
var denominations = []model.Coin{model.Quarter, model.Dime, model.Nickel}

// IsValid сообщает, является ли жетон принимаемой монетой.
func IsValid(c model.Coin) bool {
	_, ok := values[c]
	return ok
}

// ValueOf возвращает номинал монеты в центах и признак того, что монета распознана.
func ValueOf(c model.Coin) (model.Cents, bool) {
	v, ok := values[c]
	return v, ok
}

// Sum возвращает суммарный номинал монет. Нераспознанные жетоны не учитываются.
func Sum(coins []model.Coin) model.Cents {
	var total model.Cents
	for _, c := range coins {
		total += values[c]
	}
	return total
}

// Denominations возвращает принимаемые монеты в порядке убывания номинала.
func Denominations() []model.Coin {
	out := make([]model.Coin, len(denominations))
	copy(out, denominations)
	return out
}
