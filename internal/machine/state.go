package machine

import "github.com/mmeshcher/vending-machine/internal/model"

// State описывает состояние текущей покупки.
type State int

const (
	// StateIdle: монеты не внесены, на дисплее базовое сообщение.
	StateIdle State = iota
	// StateAccumulating: в текущей покупке есть монеты.
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// Outcome описывает результат нажатия кнопки товара.
type Outcome int

const (
	// OutcomeSoldOut: товара нет в наличии, деньги остаются в автомате.
	OutcomeSoldOut Outcome = iota + 1
	// OutcomeInsertCoin: денег недостаточно и ни одной монеты не внесено.
	OutcomeInsertCoin
	// OutcomeInsufficientFunds: денег недостаточно, внесённые монеты сохраняются.
	OutcomeInsufficientFunds
	// OutcomeVend: товар выдан.
	OutcomeVend
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSoldOut:
		return "sold_out"
	case OutcomeInsertCoin:
		return "insert_coin"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeVend:
		return "vended"
	default:
		return "unknown"
	}
}

// decision содержит результат чистой функции decide: исход, признак сброса дисплея
// и сообщения, которые нужно положить на дисплей в указанном порядке.
type decision struct {
	outcome  Outcome
	reset    bool
	messages []string
}

// decide выбирает исход нажатия кнопки. Проверка наличия идёт раньше проверки суммы.
func decide(state State, inStock bool, balance, price model.Cents) decision {
	switch {
	case !inStock:
		return decision{
			outcome:  OutcomeSoldOut,
			messages: []string{model.MessageSoldOut},
		}
	case balance < price && state == StateIdle:
		return decision{
			outcome:  OutcomeInsertCoin,
			messages: []string{model.MessageInsertCoin, model.PriceMessage(price)},
		}
	case balance < price:
		return decision{
			outcome:  OutcomeInsufficientFunds,
			messages: []string{model.PriceMessage(price)},
		}
	default:
		return decision{
			outcome:  OutcomeVend,
			reset:    true,
			messages: []string{model.MessageThankYou},
		}
	}
}
