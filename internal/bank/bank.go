// Package bank содержит резерв монет автомата, из которого выдаётся сдача.
package bank

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/vending-machine/internal/coinset"
	"github.com/mmeshcher/vending-machine/internal/model"
)

var (
	// ErrInsufficientCoins возвращается, если в резерве нет запрошенных монет.
	ErrInsufficientCoins = errors.New("insufficient coins in bank")
	// ErrUnknownCoin возвращается при попытке положить в резерв нераспознанный жетон.
	ErrUnknownCoin = errors.New("unknown coin")
	// ErrTooManyCoins возвращается, если в ячейке номинала окажется больше MaxCount монет.
	ErrTooManyCoins = errors.New("too many coins in bank")
)

// MaxCount ограничивает количество монет одного номинала в резерве.
const MaxCount = 1_000_000_000

// Bank хранит количество монет каждого номинала. Количество никогда не бывает отрицательным.
type Bank struct {
	counts map[model.Coin]int
}

// New создаёт резерв с начальным количеством монет.
func New(seed map[model.Coin]int) (*Bank, error) {
	b := &Bank{counts: make(map[model.Coin]int)}
	if err := b.Restore(seed); err != nil {
		return nil, err
	}
	return b, nil
}

// Restore заменяет содержимое резерва.
func (b *Bank) Restore(counts map[model.Coin]int) error {
	next := make(map[model.Coin]int, len(counts))
	for c, n := range counts {
		if !coinset.IsValid(c) {
			return fmt.Errorf("%w: %s", ErrUnknownCoin, c)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrInsufficientCoins, c)
		}
		if n > MaxCount {
			return fmt.Errorf("%w: %d %s", ErrTooManyCoins, n, c)
		}
		if n > 0 {
			next[c] = n
		}
	}
	b.counts = next
	return nil
}

// Deposit добавляет монеты в резерв.
func (b *Bank) Deposit(coins ...model.Coin) error {
	add := make(map[model.Coin]int, len(coins))
	for _, c := range coins {
		if !coinset.IsValid(c) {
			return fmt.Errorf("%w: %s", ErrUnknownCoin, c)
		}
		add[c]++
	}
	return b.Refill(add)
}

// Refill добавляет в резерв монеты по номиналам. При ошибке резерв не изменяется.
func (b *Bank) Refill(counts map[model.Coin]int) error {
	for c, n := range counts {
		if !coinset.IsValid(c) {
			return fmt.Errorf("%w: %s", ErrUnknownCoin, c)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrInsufficientCoins, c)
		}
		if n > MaxCount-b.counts[c] {
			return fmt.Errorf("%w: %s would exceed %d", ErrTooManyCoins, c, MaxCount)
		}
	}
	for c, n := range counts {
		if n > 0 {
			b.counts[c] += n
		}
	}
	return nil
}

// Withdraw забирает из резерва ровно указанные монеты.
// Если хотя бы одной монеты не хватает, резерв не изменяется.
func (b *Bank) Withdraw(coins ...model.Coin) error {
	need := make(map[model.Coin]int, len(coins))
	for _, c := range coins {
		need[c]++
	}
	for c, n := range need {
		if b.counts[c] < n {
			return fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientCoins, n, c, b.counts[c])
		}
	}
	for c, n := range need {
		b.counts[c] -= n
		if b.counts[c] == 0 {
			delete(b.counts, c)
		}
	}
	return nil
}

// Total возвращает суммарный номинал всех монет резерва.
func (b *Bank) Total() model.Cents {
	var total model.Cents
	for c, n := range b.counts {
		v, _ := coinset.ValueOf(c)
		total += v * model.Cents(n)
	}
	return total
}

// Count возвращает количество монет одного номинала.
func (b *Bank) Count(c model.Coin) int {
	return b.counts[c]
}

// Counts возвращает копию количества монет по номиналам.
func (b *Bank) Counts() map[model.Coin]int {
	out := make(map[model.Coin]int, len(b.counts))
	for c, n := range b.counts {
		out[c] = n
	}
	return out
}
