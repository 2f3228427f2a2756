// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — заявка или магазин не найдены.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — состояние заявки не допускает операцию.
	ErrConflict = errors.New("конфликт — состояние заявки изменилось")
	// ErrInvalidTransition — переход запрещён правилами жизненного цикла.
	// Частный случай конфликта: errors.Is(err, ErrConflict) тоже истинно.
	ErrInvalidTransition = fmt.Errorf("%w: недопустимый переход жизненного цикла", ErrConflict)
	// ErrForbidden — пользователь не является участником заявки.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — документ превышает лимит размера.
	ErrFileTooLarge = errors.New("документ превышает допустимый размер")
	// ErrStorage — сбой файлового хранилища.
	ErrStorage = errors.New("сбой файлового хранилища")
	// ErrTimeout — операция хранилища не уложилась в отведённое время.
	ErrTimeout = errors.New("превышено время операции хранилища")
)
