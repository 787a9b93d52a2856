// Package ledger учитывает монеты текущей покупки и монеты в лотке возврата.
package ledger

import (
	"github.com/mmeshcher/vending-machine/internal/coinset"
	"github.com/mmeshcher/vending-machine/internal/model"
)

// Ledger хранит монеты текущей покупки в порядке вставки и содержимое лотка возврата.
type Ledger struct {
	transaction []model.Coin
	tray        []model.Coin
}

// New создаёт пустой журнал.
func New() *Ledger {
	return &Ledger{}
}

// Accept добавляет принятую монету в текущую покупку.
func (l *Ledger) Accept(c model.Coin) {
	l.transaction = append(l.transaction, c)
}

// Reject кладёт отвергнутый жетон в лоток возврата без изменений.
func (l *Ledger) Reject(c model.Coin) {
	l.tray = append(l.tray, c)
}

// Refund кладёт монеты (сдачу) в лоток возврата.
func (l *Ledger) Refund(coins ...model.Coin) {
	l.tray = append(l.tray, coins...)
}

// Balance возвращает сумму монет текущей покупки.
func (l *Ledger) Balance() model.Cents {
	return coinset.Sum(l.transaction)
}

// Empty сообщает, что в текущей покупке нет монет.
func (l *Ledger) Empty() bool {
	return len(l.transaction) == 0
}

// Clear очищает текущую покупку и возвращает её монеты.
func (l *Ledger) Clear() []model.Coin {
	coins := l.transaction
	l.transaction = nil
	return coins
}

// ReturnAll перекладывает все монеты текущей покупки в лоток возврата.
func (l *Ledger) ReturnAll() []model.Coin {
	coins := l.Clear()
	l.Refund(coins...)
	return coins
}

// Coins возвращает копию монет текущей покупки.
func (l *Ledger) Coins() []model.Coin {
	return append([]model.Coin(nil), l.transaction...)
}

// Tray возвращает копию содержимого лотка возврата.
func (l *Ledger) Tray() []model.Coin {
	return append([]model.Coin(nil), l.tray...)
}

// TrayValue возвращает сумму распознанных монет в лотке возврата.
func (l *Ledger) TrayValue() model.Cents {
	return coinset.Sum(l.tray)
}

// CollectTray опустошает лоток возврата и возвращает забранные монеты.
func (l *Ledger) CollectTray() []model.Coin {
	coins := l.tray
	l.tray = nil
	return coins
}
