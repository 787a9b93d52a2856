// Package machine реализует контроллер покупки торгового автомата:
// приём монет, решение о продаже, выдачу сдачи и управление дисплеем.
package machine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/vending-machine/internal/bank"
	"github.com/mmeshcher/vending-machine/internal/catalog"
	"github.com/mmeshcher/vending-machine/internal/change"
	"github.com/mmeshcher/vending-machine/internal/coinset"
	"github.com/mmeshcher/vending-machine/internal/display"
	"github.com/mmeshcher/vending-machine/internal/ledger"
	"github.com/mmeshcher/vending-machine/internal/model"
)

// InsertResult описывает результат опускания жетона.
type InsertResult int

const (
	// Accepted: монета принята в текущую покупку.
	Accepted InsertResult = iota
	// Rejected: жетон не распознан и отправлен в лоток возврата.
	Rejected
)

func (r InsertResult) String() string {
	if r == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Purchase описывает результат нажатия кнопки товара.
type Purchase struct {
	Outcome Outcome
	// Product заполняется только при выдаче товара.
	Product model.ProductID
	Price   model.Cents
	Paid    model.Cents
	Change  []model.Coin
	// ChangeOwed содержит сумму сдачи, которую не удалось выдать точными монетами.
	ChangeOwed model.Cents
	Sale       *model.Sale
}

// Dispensed сообщает, был ли выдан товар.
func (p Purchase) Dispensed() bool {
	return p.Outcome == OutcomeVend
}

// Status содержит снимок состояния автомата.
type Status struct {
	State        State
	Balance      model.Cents
	TrayValue    model.Cents
	BaseMessage  string
	Bank         map[model.Coin]int
	BankTotal    model.Cents
	Products     []model.Product
	PendingLines int
}

// Option настраивает Machine.
type Option func(*Machine)

// WithLogger задаёт логгер автомата.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithExactChangeRecheck включает пересчёт базового сообщения после каждого изменения резерва.
func WithExactChangeRecheck(enabled bool) Option {
	return func(m *Machine) {
		m.recheck = enabled
	}
}

// WithClock задаёт источник времени для записей о продажах.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine управляет покупкой. Все операции выполняются под одним мьютексом.
type Machine struct {
	mu sync.Mutex

	catalog *catalog.Catalog
	bank    *bank.Bank
	ledger  *ledger.Ledger
	display *display.Display

	logger  *zap.Logger
	recheck bool
	now     func() time.Time
}

// New создаёт автомат с указанным каталогом и резервом монет.
// Базовое сообщение дисплея выбирается по начальному содержимому резерва.
func New(cat *catalog.Catalog, b *bank.Bank, opts ...Option) *Machine {
	m := &Machine{
		catalog: cat,
		bank:    b,
		ledger:  ledger.New(),
		display: display.New(model.MessageInsertCoin),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.refreshBase()
	return m
}

// refreshBase выбирает базовое сообщение: EXACT CHANGE ONLY, если ни одну цену
// каталога нельзя набрать из резерва.
func (m *Machine) refreshBase() {
	prices := m.catalog.Prices()
	exactOnly := len(prices) > 0
	for _, price := range prices {
		if change.CanMake(m.bank, price) {
			exactOnly = false
			break
		}
	}

	if exactOnly {
		m.display.SetBase(model.MessageExactChange)
	} else {
		m.display.SetBase(model.MessageInsertCoin)
	}
}

// state выводит состояние покупки из содержимого текущей транзакции.
func (m *Machine) state() State {
	if m.ledger.Empty() {
		return StateIdle
	}
	return StateAccumulating
}

// Insert принимает жетон и возвращает сумму текущей покупки после него.
// Нераспознанный жетон попадает в лоток возврата.
func (m *Machine) Insert(c model.Coin) (InsertResult, model.Cents) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !coinset.IsValid(c) {
		m.ledger.Reject(c)
		m.logger.Debug("coin rejected", zap.String("coin", string(c)))
		return Rejected, m.ledger.Balance()
	}

	m.ledger.Accept(c)
	balance := m.ledger.Balance()
	m.display.Push(balance.String())

	m.logger.Debug("coin accepted",
		zap.String("coin", string(c)),
		zap.Stringer("balance", balance),
	)
	return Accepted, balance
}

// PressButton обрабатывает нажатие кнопки товара.
// Для неизвестного товара возвращается ошибка, состояние автомата не меняется.
func (m *Machine) PressButton(id model.ProductID) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, err := m.catalog.Price(id)
	if err != nil {
		return Purchase{}, err
	}
	inStock, err := m.catalog.InStock(id)
	if err != nil {
		return Purchase{}, err
	}

	balance := m.ledger.Balance()
	d := decide(m.state(), inStock, balance, price)

	p := Purchase{Outcome: d.outcome, Price: price, Paid: balance}
	if d.outcome == OutcomeVend {
		if err := m.vend(id, &p); err != nil {
			return Purchase{}, err
		}
	} else {
		m.logger.Debug("product not dispensed",
			zap.String("product", string(id)),
			zap.Stringer("outcome", d.outcome),
			zap.Stringer("balance", balance),
		)
	}

	if d.reset {
		m.display.Reset()
	}
	for _, msg := range d.messages {
		m.display.Push(msg)
	}
	return p, nil
}

func (m *Machine) vend(id model.ProductID, p *Purchase) error {
	if err := m.bank.Deposit(m.ledger.Coins()...); err != nil {
		return fmt.Errorf("deposit coins: %w", err)
	}
	m.ledger.Clear()
	if err := m.catalog.Decrement(id); err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	p.Product = id
	owed := p.Paid - p.Price
	if owed > 0 {
		picked, err := change.Make(m.bank, owed)
		switch {
		case errors.Is(err, change.ErrUnavailable):
			p.ChangeOwed = owed
			m.logger.Warn("exact change unavailable, change withheld",
				zap.String("product", string(id)),
				zap.Stringer("owed", owed),
				zap.Stringer("bankTotal", m.bank.Total()),
			)
		case err != nil:
			return fmt.Errorf("make change: %w", err)
		default:
			if err := m.bank.Withdraw(picked...); err != nil {
				return fmt.Errorf("withdraw change: %w", err)
			}
			m.ledger.Refund(picked...)
			p.Change = picked
		}
	}

	if m.recheck {
		m.refreshBase()
	}

	p.Sale = &model.Sale{
		ID:         uuid.New(),
		Product:    id,
		Price:      p.Price,
		Paid:       p.Paid,
		Change:     coinset.Sum(p.Change),
		ChangeOwed: p.ChangeOwed,
		SoldAt:     m.now(),
	}

	m.logger.Info("product dispensed",
		zap.String("product", string(id)),
		zap.Stringer("price", p.Price),
		zap.Stringer("paid", p.Paid),
		zap.Stringer("change", p.Sale.Change),
	)
	return nil
}

// ReturnCoins перекладывает монеты текущей покупки в лоток возврата
// и возвращает дисплей к базовому сообщению.
func (m *Machine) ReturnCoins() []model.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()

	coins := m.ledger.ReturnAll()
	m.display.Reset()

	m.logger.Debug("coins returned", zap.Int("count", len(coins)))
	return coins
}

// CurrentAmount возвращает сумму монет текущей покупки.
func (m *Machine) CurrentAmount() model.Cents {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Balance()
}

// CurrentAmountInReturn возвращает сумму монет в лотке возврата.
func (m *Machine) CurrentAmountInReturn() model.Cents {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.TrayValue()
}

// Display читает дисплей. Каждое чтение снимает одно одноразовое сообщение.
func (m *Machine) Display() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display.Read()
}

// State возвращает состояние текущей покупки.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

// Inventory возвращает остаток товара.
func (m *Machine) Inventory(id model.ProductID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.Stock(id)
}

// SetInventory устанавливает остаток товара.
func (m *Machine) SetInventory(id model.ProductID, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.catalog.SetStock(id, level); err != nil {
		return err
	}
	m.logger.Info("inventory updated", zap.String("product", string(id)), zap.Int("level", level))
	return nil
}

// Transaction возвращает монеты текущей покупки.
func (m *Machine) Transaction() []model.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Coins()
}

// ReturnTray возвращает содержимое лотка возврата.
func (m *Machine) ReturnTray() []model.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Tray()
}

// CollectReturnTray опустошает лоток возврата.
func (m *Machine) CollectReturnTray() []model.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.CollectTray()
}

// RefillBank пополняет резерв монет.
func (m *Machine) RefillBank(counts map[model.Coin]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.bank.Refill(counts); err != nil {
		return err
	}
	if m.recheck {
		m.refreshBase()
	}

	added := 0
	for _, n := range counts {
		added += n
	}
	m.logger.Info("bank refilled", zap.Int("coins", added), zap.Stringer("bankTotal", m.bank.Total()))
	return nil
}

// BankContents возвращает количество монет резерва по номиналам.
func (m *Machine) BankContents() map[model.Coin]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bank.Counts()
}

// Restore восстанавливает резерв и остатки, например из хранилища при запуске.
// Базовое сообщение пересчитывается по восстановленному резерву.
func (m *Machine) Restore(counts map[model.Coin]int, stock map[model.ProductID]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.bank.Restore(counts); err != nil {
		return fmt.Errorf("restore bank: %w", err)
	}
	for id, level := range stock {
		if !m.catalog.Has(id) {
			m.logger.Warn("skipping stock for unknown product", zap.String("product", string(id)))
			continue
		}
		if err := m.catalog.SetStock(id, level); err != nil {
			return fmt.Errorf("restore stock %s: %w", id, err)
		}
	}
	m.refreshBase()
	return nil
}

// Status возвращает снимок состояния автомата.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		State:        m.state(),
		Balance:      m.ledger.Balance(),
		TrayValue:    m.ledger.TrayValue(),
		BaseMessage:  m.display.Base(),
		Bank:         m.bank.Counts(),
		BankTotal:    m.bank.Total(),
		Products:     m.catalog.Products(),
		PendingLines: m.display.Pending(),
	}
}
