package machine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/vending-machine/internal/bank"
	"github.com/mmeshcher/vending-machine/internal/catalog"
	"github.com/mmeshcher/vending-machine/internal/coinset"
	"github.com/mmeshcher/vending-machine/internal/model"
)

var defaultSeed = map[model.Coin]int{
	model.Nickel:  20,
	model.Dime:    20,
	model.Quarter: 20,
}

func newMachine(t *testing.T, seed map[model.Coin]int, opts ...Option) *Machine {
	t.Helper()

	b, err := bank.New(seed)
	require.NoError(t, err)

	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return New(catalog.Default(10), b, opts...)
}

func insert(t *testing.T, m *Machine, coins ...model.Coin) {
	t.Helper()
	for _, c := range coins {
		res, _ := m.Insert(c)
		require.Equal(t, Accepted, res, "coin %s", c)
	}
}

func times(n int, c model.Coin) []model.Coin {
	out := make([]model.Coin, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestInsertValidCoins(t *testing.T) {
	for _, c := range coinset.Denominations() {
		t.Run(string(c), func(t *testing.T) {
			m := newMachine(t, defaultSeed)
			value, _ := coinset.ValueOf(c)

			res, balance := m.Insert(c)
			assert.Equal(t, Accepted, res)
			assert.Equal(t, value, balance)
			assert.Equal(t, value, m.CurrentAmount())
			assert.Equal(t, model.Cents(0), m.CurrentAmountInReturn())
			assert.Equal(t, []model.Coin{c}, m.Transaction())
			assert.Equal(t, StateAccumulating, m.State())
		})
	}
}

func TestInsertInvalidCoin(t *testing.T) {
	m := newMachine(t, defaultSeed)

	for i := 0; i < 2; i++ {
		res, balance := m.Insert("penny")
		assert.Equal(t, Rejected, res)
		assert.Equal(t, model.Cents(0), balance)
	}

	assert.Equal(t, model.Cents(0), m.CurrentAmount())
	assert.Empty(t, m.Transaction())
	assert.Equal(t, []model.Coin{"penny", "penny"}, m.ReturnTray())
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, "INSERT COIN", m.Display(), "rejected coin must not push a message")
}

func TestIdleDisplayIsStable(t *testing.T) {
	m := newMachine(t, defaultSeed)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "INSERT COIN", m.Display())
	}
}

func TestDisplayShowsBalance(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, model.Quarter, model.Quarter, model.Quarter)

	assert.Equal(t, "$0.75", m.Display())
}

func TestSuccessfulPurchase(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, times(4, model.Quarter)...)

	p, err := m.PressButton(model.Cola)
	require.NoError(t, err)

	assert.True(t, p.Dispensed())
	assert.Equal(t, model.Cola, p.Product)
	assert.Equal(t, model.Cents(0), m.CurrentAmount())
	assert.Empty(t, m.Transaction())
	assert.Equal(t, StateIdle, m.State())

	assert.Equal(t, "THANK YOU", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())

	stock, err := m.Inventory(model.Cola)
	require.NoError(t, err)
	assert.Equal(t, 9, stock)

	assert.Equal(t, defaultSeed[model.Quarter]+4, m.BankContents()[model.Quarter])

	require.NotNil(t, p.Sale)
	assert.Equal(t, model.Cents(100), p.Sale.Paid)
	assert.Equal(t, model.Cents(0), p.Sale.Change)
}

func TestPurchaseWithoutCoins(t *testing.T) {
	m := newMachine(t, defaultSeed)

	p, err := m.PressButton(model.Cola)
	require.NoError(t, err)

	assert.False(t, p.Dispensed())
	assert.Equal(t, OutcomeInsertCoin, p.Outcome)
	assert.Equal(t, "PRICE $1.00", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())
}

func TestPurchaseWithInsufficientCoins(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, model.Quarter)

	p, err := m.PressButton(model.Cola)
	require.NoError(t, err)

	assert.Equal(t, OutcomeInsufficientFunds, p.Outcome)
	assert.Equal(t, model.Cents(25), m.CurrentAmount(), "money stays inserted")
	assert.Equal(t, "PRICE $1.00", m.Display())
	assert.Equal(t, "$0.25", m.Display())
}

func TestSoldOut(t *testing.T) {
	m := newMachine(t, defaultSeed)
	require.NoError(t, m.SetInventory(model.Candy, 0))
	insert(t, m, times(5, model.Quarter)...)

	p, err := m.PressButton(model.Candy)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSoldOut, p.Outcome)
	assert.Empty(t, p.Product)
	assert.Equal(t, "SOLD OUT", m.Display())
	assert.Equal(t, "$1.25", m.Display())
	assert.Equal(t, model.Cents(125), m.CurrentAmount(), "money is not returned automatically")
}

func TestSoldOutAfterReturn(t *testing.T) {
	m := newMachine(t, defaultSeed)
	require.NoError(t, m.SetInventory(model.Candy, 0))
	insert(t, m, times(5, model.Quarter)...)

	m.ReturnCoins()
	_, err := m.PressButton(model.Candy)
	require.NoError(t, err)

	assert.Equal(t, "SOLD OUT", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())
}

func TestChangeReturned(t *testing.T) {
	paid := []model.Coin{
		model.Nickel, model.Quarter, model.Dime, model.Nickel, model.Nickel,
		model.Quarter, model.Quarter, model.Dime, model.Nickel,
	}

	tests := []struct {
		product model.ProductID
		change  model.Cents
	}{
		{product: model.Cola, change: 15},
		{product: model.Chips, change: 65},
		{product: model.Candy, change: 50},
	}

	for _, tt := range tests {
		t.Run(string(tt.product), func(t *testing.T) {
			m := newMachine(t, defaultSeed)
			insert(t, m, paid...)

			p, err := m.PressButton(tt.product)
			require.NoError(t, err)

			assert.True(t, p.Dispensed())
			assert.Equal(t, tt.change, m.CurrentAmountInReturn())
			assert.Equal(t, tt.change, coinset.Sum(p.Change))
			assert.Equal(t, model.Cents(0), p.ChangeOwed)
		})
	}
}

func TestChangeForChips(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, times(6, model.Quarter)...)

	_, err := m.PressButton(model.Chips)
	require.NoError(t, err)

	assert.Equal(t, model.Cents(100), m.CurrentAmountInReturn())
}

func TestBankTotalIsConserved(t *testing.T) {
	m := newMachine(t, defaultSeed)
	before := m.Status().BankTotal

	insert(t, m, times(6, model.Quarter)...)
	_, err := m.PressButton(model.Candy)
	require.NoError(t, err)

	st := m.Status()
	assert.Equal(t, before+65, st.BankTotal)
	assert.Equal(t, model.Cents(85), st.TrayValue)
}

func TestChangeWithheldWhenUnavailable(t *testing.T) {
	m := newMachine(t, nil)
	insert(t, m, times(3, model.Quarter)...)

	p, err := m.PressButton(model.Candy)
	require.NoError(t, err)

	assert.True(t, p.Dispensed())
	assert.Empty(t, p.Change)
	assert.Equal(t, model.Cents(10), p.ChangeOwed)
	assert.Equal(t, model.Cents(0), m.CurrentAmountInReturn(), "no partial change is disbursed")
	assert.Equal(t, map[model.Coin]int{model.Quarter: 3}, m.BankContents())
}

func TestReturnCoins(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, model.Quarter, model.Quarter, model.Dime, model.Dime, model.Dime)

	returned := m.ReturnCoins()

	assert.Len(t, returned, 5)
	assert.ElementsMatch(t,
		[]model.Coin{model.Quarter, model.Quarter, model.Dime, model.Dime, model.Dime},
		m.ReturnTray(),
	)
	assert.Equal(t, model.Cents(80), m.CurrentAmountInReturn())
	assert.Equal(t, model.Cents(0), m.CurrentAmount())
	assert.Equal(t, "INSERT COIN", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())
}

func TestCollectReturnTray(t *testing.T) {
	m := newMachine(t, defaultSeed)
	m.Insert("penny")
	insert(t, m, model.Dime)
	m.ReturnCoins()

	assert.ElementsMatch(t, []model.Coin{"penny", model.Dime}, m.CollectReturnTray())
	assert.Empty(t, m.ReturnTray())
}

func TestUnknownProduct(t *testing.T) {
	m := newMachine(t, defaultSeed)
	insert(t, m, model.Quarter)

	_, err := m.PressButton("gum")
	assert.ErrorIs(t, err, catalog.ErrUnknownProduct)
	assert.Equal(t, model.Cents(25), m.CurrentAmount())
	assert.Equal(t, "$0.25", m.Display())

	_, err = m.Inventory("gum")
	assert.ErrorIs(t, err, catalog.ErrUnknownProduct)
}

func TestBaseMessage(t *testing.T) {
	tests := []struct {
		name string
		seed map[model.Coin]int
		want string
	}{
		{name: "default bank", seed: defaultSeed, want: "INSERT COIN"},
		{name: "empty bank", seed: nil, want: "EXACT CHANGE ONLY"},
		{name: "single dime", seed: map[model.Coin]int{model.Dime: 1}, want: "EXACT CHANGE ONLY"},
		{name: "two quarters make chips", seed: map[model.Coin]int{model.Quarter: 2}, want: "INSERT COIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine(t, tt.seed)
			assert.Equal(t, tt.want, m.Display())
			assert.Equal(t, tt.want, m.Status().BaseMessage)
		})
	}
}

func TestBaseMessageComputedOnce(t *testing.T) {
	m := newMachine(t, nil)
	insert(t, m, times(4, model.Quarter)...)
	_, err := m.PressButton(model.Cola)
	require.NoError(t, err)

	assert.Equal(t, "THANK YOU", m.Display())
	assert.Equal(t, "EXACT CHANGE ONLY", m.Display())
}

func TestBaseMessageRecheck(t *testing.T) {
	m := newMachine(t, nil, WithExactChangeRecheck(true))
	insert(t, m, times(4, model.Quarter)...)
	_, err := m.PressButton(model.Cola)
	require.NoError(t, err)

	assert.Equal(t, "THANK YOU", m.Display())
	assert.Equal(t, "INSERT COIN", m.Display())
}

func TestRefillBank(t *testing.T) {
	m := newMachine(t, nil, WithExactChangeRecheck(true))
	require.Equal(t, "EXACT CHANGE ONLY", m.Display())

	require.NoError(t, m.RefillBank(map[model.Coin]int{model.Quarter: 4, model.Dime: 2}))
	assert.Equal(t, map[model.Coin]int{model.Quarter: 4, model.Dime: 2}, m.BankContents())
	assert.Equal(t, "INSERT COIN", m.Display())

	assert.ErrorIs(t, m.RefillBank(map[model.Coin]int{"penny": 1}), bank.ErrUnknownCoin)
	assert.ErrorIs(t, m.RefillBank(map[model.Coin]int{model.Dime: -1}), bank.ErrInsufficientCoins)
	assert.ErrorIs(t, m.RefillBank(map[model.Coin]int{model.Dime: bank.MaxCount}), bank.ErrTooManyCoins)
	assert.Equal(t, map[model.Coin]int{model.Quarter: 4, model.Dime: 2}, m.BankContents())
}

func TestRefillBank_HugeBankStillMakesChange(t *testing.T) {
	m := newMachine(t, nil)

	start := time.Now()
	require.NoError(t, m.RefillBank(map[model.Coin]int{
		model.Quarter: bank.MaxCount - 10,
		model.Dime:    bank.MaxCount,
		model.Nickel:  bank.MaxCount,
	}))

	insert(t, m, times(4, model.Quarter)...)
	p, err := m.PressButton(model.Candy)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, OutcomeVend, p.Outcome)
	assert.Equal(t, []model.Coin{model.Quarter, model.Dime}, p.Change)
	assert.Equal(t, bank.MaxCount-7, m.BankContents()[model.Quarter])
	assert.Equal(t, bank.MaxCount-1, m.BankContents()[model.Dime])
}

func TestPressButton_DepositFailureKeepsTransaction(t *testing.T) {
	m := newMachine(t, map[model.Coin]int{model.Quarter: bank.MaxCount})
	insert(t, m, model.Quarter, model.Quarter)

	_, err := m.PressButton(model.Chips)
	require.ErrorIs(t, err, bank.ErrTooManyCoins)

	assert.Equal(t, model.Cents(50), m.CurrentAmount())
	assert.Equal(t, StateAccumulating, m.State())
	level, err := m.Inventory(model.Chips)
	require.NoError(t, err)
	assert.Equal(t, 10, level)
	assert.Equal(t, "$0.50", m.Display(), "display is untouched by a failed vend")
}

func TestRestore(t *testing.T) {
	m := newMachine(t, defaultSeed)

	err := m.Restore(nil, map[model.ProductID]int{model.Cola: 2, "gum": 4})
	require.NoError(t, err)

	stock, err := m.Inventory(model.Cola)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
	assert.Empty(t, m.BankContents())
	assert.Equal(t, "EXACT CHANGE ONLY", m.Display())
}

func TestSaleUsesClock(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m := newMachine(t, defaultSeed, WithClock(func() time.Time { return at }))
	insert(t, m, model.Quarter, model.Quarter)

	p, err := m.PressButton(model.Chips)
	require.NoError(t, err)
	require.NotNil(t, p.Sale)
	assert.Equal(t, at, p.Sale.SoldAt)
	assert.NotEqual(t, [16]byte{}, [16]byte(p.Sale.ID))
}

func TestConcurrentOperations(t *testing.T) {
	m := newMachine(t, defaultSeed)
	require.NoError(t, m.SetInventory(model.Chips, 100))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Insert(model.Quarter)
				m.Insert(model.Quarter)
				_, _ = m.PressButton(model.Chips)
				_ = m.Display()
			}
		}()
	}
	wg.Wait()

	st := m.Status()
	assert.Equal(t, st.BankTotal+st.TrayValue+st.Balance,
		model.Cents(20*5+20*10+20*25)+model.Cents(8*20*50), "no money is created or lost")
}
