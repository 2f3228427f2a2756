// Пакет lifecycle — конечный автомат жизненного цикла заявки на печать.
//
// Две независимые дорожки, action ограничивает status:
//   - action — решение магазина: Pending → Accepted | Declined (однократно)
//   - status — выполнение: Pending → Responded → Printed
//     Responded доступен только после Accepted; Declined замораживает
//     status на Pending навсегда.
//
// Пакет не хранит состояние: каноническое состояние заявки лежит в
// PostgreSQL, здесь только проверка допустимости пары (состояние, переход).
package lifecycle

import (
	"fmt"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
)

// Transition — переход жизненного цикла, инициируемый магазином.
type Transition string

const (
	// TransitionAccept — магазин принимает заявку (action → Accepted).
	TransitionAccept Transition = "accept"
	// TransitionDecline — магазин отклоняет заявку (action → Declined).
	TransitionDecline Transition = "decline"
	// TransitionRespond — магазин приступил к работе (status → Responded).
	TransitionRespond Transition = "respond"
	// TransitionPrinted — заявка напечатана (status → Printed).
	TransitionPrinted Transition = "printed"
)

// State — наблюдаемое состояние заявки: пара (status, action).
type State struct {
	Status model.Status
	Action model.Action
}

// TransitionError — ошибка недопустимого перехода.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// rule — правило перехода: предусловие и результирующее состояние.
type rule struct {
	check func(State) *TransitionError
	apply func(State) State
}

// rules — матрица переходов жизненного цикла.
var rules = map[Transition]rule{
	TransitionAccept: {
		check: func(s State) *TransitionError {
			if s.Action != model.ActionPending {
				return invalid("повторное решение по заявке невозможно: action уже %s", s.Action)
			}
			return nil
		},
		apply: func(s State) State {
			s.Action = model.ActionAccepted
			return s
		},
	},
	TransitionDecline: {
		check: func(s State) *TransitionError {
			if s.Action != model.ActionPending {
				return invalid("повторное решение по заявке невозможно: action уже %s", s.Action)
			}
			return nil
		},
		apply: func(s State) State {
			s.Action = model.ActionDeclined
			return s
		},
	},
	TransitionRespond: {
		check: func(s State) *TransitionError {
			if s.Action != model.ActionAccepted {
				return invalid("переход в Responded требует принятой заявки, action: %s", s.Action)
			}
			if s.Status != model.StatusPending {
				return invalid("переход Pending → Responded недопустим из статуса %s", s.Status)
			}
			return nil
		},
		apply: func(s State) State {
			s.Status = model.StatusResponded
			return s
		},
	},
	TransitionPrinted: {
		check: func(s State) *TransitionError {
			if s.Status != model.StatusResponded {
				return invalid("переход Responded → Printed недопустим из статуса %s", s.Status)
			}
			return nil
		},
		apply: func(s State) State {
			s.Status = model.StatusPrinted
			return s
		},
	},
}

// statusRank — порядок статусов для проверки монотонности.
var statusRank = map[model.Status]int{
	model.StatusPending:   0,
	model.StatusResponded: 1,
	model.StatusPrinted:   2,
}

// Check проверяет допустимость перехода из состояния s.
// Возвращает nil, если переход допустим.
func Check(s State, tr Transition) error {
	r, ok := rules[tr]
	if !ok {
		return invalid("неизвестный переход: %q", tr)
	}
	if err := r.check(s); err != nil {
		return err
	}
	return nil
}

// Apply выполняет переход и возвращает новое состояние.
// При недопустимом переходе состояние не меняется.
func Apply(s State, tr Transition) (State, error) {
	r, ok := rules[tr]
	if !ok {
		return s, invalid("неизвестный переход: %q", tr)
	}
	if err := r.check(s); err != nil {
		return s, err
	}
	next := r.apply(s)

	// Инвариант монотонности: status не откатывается и не перескакивает.
	if statusRank[next.Status] < statusRank[s.Status] {
		return s, invalid("откат статуса %s → %s недопустим", s.Status, next.Status)
	}
	if statusRank[next.Status]-statusRank[s.Status] > 1 {
		return s, invalid("пропуск статуса при переходе %s → %s недопустим", s.Status, next.Status)
	}

	return next, nil
}

// CanEditSpec сообщает, допустимо ли редактирование спецификации заявки.
// Разрешено строго в паре Pending/Pending: после решения магазина либо
// начала выполнения спецификация неизменяема.
func CanEditSpec(s State) bool {
	return s.Status == model.StatusPending && s.Action == model.ActionPending
}

// CanDelete сообщает, допустимо ли удаление заявки клиентом.
// Разрешено, пока магазин не принял решение.
func CanDelete(s State) bool {
	return s.Action == model.ActionPending
}

// ParseTransition преобразует строку в Transition.
func ParseTransition(s string) (Transition, error) {
	switch Transition(s) {
	case TransitionAccept, TransitionDecline, TransitionRespond, TransitionPrinted:
		return Transition(s), nil
	default:
		return "", fmt.Errorf("недопустимый переход: %q, допустимые: accept, decline, respond, printed", s)
	}
}

// invalid создаёт TransitionError с кодом INVALID_TRANSITION.
func invalid(format string, args ...any) *TransitionError {
	return &TransitionError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf(format, args...),
	}
}
