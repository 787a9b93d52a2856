// Package change подбирает монеты для сдачи жадным алгоритмом.
package change

import (
	"errors"

	"github.com/mmeshcher/vending-machine/internal/coinset"
	"github.com/mmeshcher/vending-machine/internal/model"
)

// ErrUnavailable возвращается, если сдачу на точную сумму набрать нельзя.
var ErrUnavailable = errors.New("exact change unavailable")

// Source описывает резерв монет, из которого набирается сдача.
type Source interface {
	Count(c model.Coin) int
}

// Make подбирает монеты из резерва на сумму amount, начиная с крупных номиналов.
// Каждого номинала берётся столько, сколько помещается в остаток и есть в резерве.
// Резерв не изменяется. Частичный результат никогда не возвращается.
func Make(src Source, amount model.Cents) ([]model.Coin, error) {
	if amount < 0 {
		return nil, ErrUnavailable
	}
	if amount == 0 {
		return nil, nil
	}

	var picked []model.Coin
	remaining := amount
	for _, c := range coinset.Denominations() {
		v, _ := coinset.ValueOf(c)
		take := min(int64(src.Count(c)), int64(remaining/v))
		for i := int64(0); i < take; i++ {
			picked = append(picked, c)
		}
		remaining -= v * model.Cents(take)
		if remaining == 0 {
			return picked, nil
		}
	}
	return nil, ErrUnavailable
}

// CanMake сообщает, можно ли набрать сумму amount из резерва.
func CanMake(src Source, amount model.Cents) bool {
	_, err := Make(src, amount)
	return err == nil
}
