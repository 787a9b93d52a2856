// Package service связывает автомат с хранилищем состояния и журналом продаж.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/vending-machine/internal/machine"
	"github.com/mmeshcher/vending-machine/internal/model"
	"github.com/mmeshcher/vending-machine/internal/repository"
)

var (
	// ErrPersistenceDisabled возвращается, если хранилище не настроено.
	ErrPersistenceDisabled = errors.New("persistence is disabled")
	// ErrInvalidStockLevel возвращается при попытке установить отрицательный остаток.
	ErrInvalidStockLevel = errors.New("invalid stock level")
)

// Repository описывает контракт хранилища, используемый сервисом.
type Repository interface {
	Close() error
	LoadState(ctx context.Context) (map[model.Coin]int, map[model.ProductID]int, error)
	SaveState(ctx context.Context, coins map[model.Coin]int, stock map[model.ProductID]int) error
	RecordSale(ctx context.Context, sale model.Sale) error
	ListSales(ctx context.Context, limit int) ([]model.Sale, error)
}

// Balance содержит сумму текущей покупки и сумму в лотке возврата.
type Balance struct {
	Current  model.Cents
	InReturn model.Cents
}

// Service оборачивает автомат операциями, которые сохраняют его состояние.
type Service struct {
	machine       *machine.Machine
	repo          Repository
	logger        *zap.Logger
	flushInterval time.Duration
	dirty         atomic.Bool
}

// NewService создаёт сервис. Если repo равен nil, состояние живёт только в памяти.
func NewService(m *machine.Machine, repo Repository, logger *zap.Logger, flushInterval time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Service{
		machine:       m,
		repo:          repo,
		logger:        logger,
		flushInterval: flushInterval,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Restore загружает сохранённое состояние автомата. Если состояния ещё нет,
// сохраняется текущее начальное.
func (s *Service) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	coins, stock, err := s.repo.LoadState(ctx)
	if errors.Is(err, repository.ErrStateNotFound) {
		s.logger.Info("no saved machine state, persisting initial state")
		return s.Flush(ctx)
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	if err := s.machine.Restore(coins, stock); err != nil {
		return err
	}
	s.logger.Info("machine state restored", zap.Int("denominations", len(coins)), zap.Int("products", len(stock)))
	return nil
}

// InsertCoin опускает жетон в автомат.
func (s *Service) InsertCoin(c model.Coin) (machine.InsertResult, model.Cents) {
	return s.machine.Insert(c)
}

// SelectProduct нажимает кнопку товара. Продажа записывается в журнал;
// ошибка журнала не отменяет уже выданный товар.
func (s *Service) SelectProduct(ctx context.Context, id model.ProductID) (machine.Purchase, error) {
	p, err := s.machine.PressButton(id)
	if err != nil {
		return machine.Purchase{}, err
	}
	if !p.Dispensed() {
		return p, nil
	}

	s.dirty.Store(true)
	if s.repo != nil && p.Sale != nil {
		if err := s.repo.RecordSale(ctx, *p.Sale); err != nil {
			s.logger.Error("record sale error", zap.Error(err), zap.String("sale", p.Sale.ID.String()))
		}
	}
	return p, nil
}

// ReturnCoins возвращает монеты текущей покупки в лоток возврата.
func (s *Service) ReturnCoins() []model.Coin {
	return s.machine.ReturnCoins()
}

// Display читает дисплей автомата.
func (s *Service) Display() string {
	return s.machine.Display()
}

// Balance возвращает сумму текущей покупки и сумму в лотке возврата.
func (s *Service) Balance() Balance {
	return Balance{
		Current:  s.machine.CurrentAmount(),
		InReturn: s.machine.CurrentAmountInReturn(),
	}
}

// Transaction возвращает монеты текущей покупки.
func (s *Service) Transaction() []model.Coin {
	return s.machine.Transaction()
}

// ReturnTray возвращает содержимое лотка возврата.
func (s *Service) ReturnTray() []model.Coin {
	return s.machine.ReturnTray()
}

// CollectReturnTray забирает монеты из лотка возврата.
func (s *Service) CollectReturnTray() []model.Coin {
	return s.machine.CollectReturnTray()
}

// Inventory возвращает остаток товара.
func (s *Service) Inventory(id model.ProductID) (int, error) {
	return s.machine.Inventory(id)
}

// SetInventory устанавливает остаток товара.
func (s *Service) SetInventory(id model.ProductID, level int) error {
	if level < 0 {
		return ErrInvalidStockLevel
	}
	if err := s.machine.SetInventory(id, level); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// RefillBank пополняет резерв монет.
func (s *Service) RefillBank(counts map[model.Coin]int) error {
	if err := s.machine.RefillBank(counts); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// Status возвращает снимок состояния автомата.
func (s *Service) Status() machine.Status {
	return s.machine.Status()
}

// Sales возвращает последние продажи из журнала.
func (s *Service) Sales(ctx context.Context, limit int) ([]model.Sale, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repo.ListSales(ctx, limit)
}

// Flush сохраняет резерв монет и остатки товаров.
func (s *Service) Flush(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	s.dirty.Store(false)
	st := s.machine.Status()
	stock := make(map[model.ProductID]int, len(st.Products))
	for _, p := range st.Products {
		stock[p.ID] = p.Stock
	}

	if err := s.repo.SaveState(ctx, st.Bank, stock); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// StartSnapshotFlush запускает фоновое сохранение изменённого состояния.
func (s *Service) StartSnapshotFlush(ctx context.Context) {
	if s.repo == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.dirty.Load() {
					continue
				}
				if err := s.Flush(ctx); err != nil {
					s.logger.Error("flush state error", zap.Error(err))
				}
			}
		}
	}()
}

// Dirty сообщает, есть ли несохранённые изменения.
func (s *Service) Dirty() bool {
	return s.dirty.Load()
}
