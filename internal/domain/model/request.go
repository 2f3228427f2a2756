// Пакет model — доменные структуры Order Module.
package model

import (
	"fmt"
	"time"
)

// Status — стадия выполнения заявки на печать.
// Продвигается только вперёд: Pending → Responded → Printed.
type Status string

const (
	// StatusPending — заявка создана, магазин ещё не приступил к выполнению.
	StatusPending Status = "Pending"
	// StatusResponded — магазин принял заявку в работу и назвал стоимость.
	StatusResponded Status = "Responded"
	// StatusPrinted — заявка выполнена. Конечная стадия.
	StatusPrinted Status = "Printed"
)

// Action — решение магазина по заявке.
// Единственный переход из Pending: Accepted либо Declined, оба конечные.
type Action string

const (
	// ActionPending — магазин ещё не принял решение.
	ActionPending Action = "Pending"
	// ActionAccepted — магазин принял заявку.
	ActionAccepted Action = "Accepted"
	// ActionDeclined — магазин отклонил заявку. Статус замораживается.
	ActionDeclined Action = "Declined"
)

// PrintType — тип печати.
type PrintType string

const (
	PrintTypeColor      PrintType = "color"
	PrintTypeMonochrome PrintType = "monochrome"
)

// PrintSide — односторонняя или двусторонняя печать.
type PrintSide string

const (
	PrintSideSingle PrintSide = "single"
	PrintSideDouble PrintSide = "double"
)

// PageSize — формат страницы.
type PageSize string

const (
	PageSizeA4     PageSize = "A4"
	PageSizeA3     PageSize = "A3"
	PageSizeLetter PageSize = "Letter"
	PageSizeLegal  PageSize = "Legal"
)

// RequestSpec — редактируемая часть заявки.
type RequestSpec struct {
	TotalPages int       `json:"total_pages"`
	PrintType  PrintType `json:"print_type"`
	PrintSide  PrintSide `json:"print_side"`
	PageSize   PageSize  `json:"page_size"`
	Copies     int       `json:"no_of_copies"`
	Comments   string    `json:"comments,omitempty"`
}

// Validate проверяет диапазоны и enum-значения спецификации.
func (s *RequestSpec) Validate() error {
	if s.TotalPages <= 0 {
		return fmt.Errorf("total_pages должно быть > 0, получено %d", s.TotalPages)
	}
	if s.Copies <= 0 {
		return fmt.Errorf("no_of_copies должно быть > 0, получено %d", s.Copies)
	}
	if _, err := ParsePrintType(string(s.PrintType)); err != nil {
		return err
	}
	if _, err := ParsePrintSide(string(s.PrintSide)); err != nil {
		return err
	}
	if _, err := ParsePageSize(string(s.PageSize)); err != nil {
		return err
	}
	return nil
}

// PrintRequest — заявка клиента на печать, привязанная к одному магазину.
// ID, Requester, Target и FileRef неизменяемы после создания.
type PrintRequest struct {
	// ID — UUID заявки, назначается сервером.
	ID string `json:"id"`
	// Requester — sub клиента из JWT.
	Requester string `json:"requester"`
	// RequesterEmail — email клиента (для карточки заявки у магазина).
	RequesterEmail string `json:"requester_email"`
	// Target — sub магазина, которому адресована заявка.
	Target string `json:"target"`

	// Spec — спецификация печати (редактируется только в Pending/Pending).
	Spec RequestSpec `json:"spec"`

	// --- Загруженный документ (записывается один раз при создании) ---

	// FileRef — путь документа в хранилище.
	FileRef string `json:"file_ref"`
	// FileName — оригинальное имя загруженного файла.
	FileName string `json:"file_name"`
	// FileSize — размер документа в байтах.
	FileSize int64 `json:"file_size"`
	// ContentType — MIME-тип документа.
	ContentType string `json:"content_type"`
	// Checksum — SHA-256 содержимого документа.
	Checksum string `json:"checksum"`

	// --- Жизненный цикл ---

	Status Status `json:"status"`
	Action Action `json:"action"`

	// RequestTime — время создания заявки, неизменяемо.
	RequestTime time.Time `json:"request_time"`
	// UpdateTime — время последней мутации status/action/spec.
	UpdateTime time.Time `json:"update_time"`
}

// ParsePrintType преобразует строку в PrintType.
func ParsePrintType(s string) (PrintType, error) {
	switch PrintType(s) {
	case PrintTypeColor, PrintTypeMonochrome:
		return PrintType(s), nil
	default:
		return "", fmt.Errorf("недопустимый print_type: %q, допустимые: color, monochrome", s)
	}
}

// ParsePrintSide преобразует строку в PrintSide.
func ParsePrintSide(s string) (PrintSide, error) {
	switch PrintSide(s) {
	case PrintSideSingle, PrintSideDouble:
		return PrintSide(s), nil
	default:
		return "", fmt.Errorf("недопустимый print_side: %q, допустимые: single, double", s)
	}
}

// ParsePageSize преобразует строку в PageSize.
func ParsePageSize(s string) (PageSize, error) {
	switch PageSize(s) {
	case PageSizeA4, PageSizeA3, PageSizeLetter, PageSizeLegal:
		return PageSize(s), nil
	default:
		return "", fmt.Errorf("недопустимый page_size: %q, допустимые: A4, A3, Letter, Legal", s)
	}
}

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusResponded, StatusPrinted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("недопустимый status: %q, допустимые: Pending, Responded, Printed", s)
	}
}

// ParseAction преобразует строку в Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionPending, ActionAccepted, ActionDeclined:
		return Action(s), nil
	default:
		return "", fmt.Errorf("недопустимый action: %q, допустимые: Pending, Accepted, Declined", s)
	}
}
