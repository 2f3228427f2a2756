// projector.go — проекции заявок для ответов API.
//
// Клиент и магазин видят разные срезы одной заявки: клиенту не нужен
// собственный email, магазину не показывается внутренний путь документа.
// Проекции — чистые функции без обращений к базе.
package service

import (
	"time"

	"github.com/CS-Kiran/print-seva/order-module/internal/domain/model"
)

// RequesterView — заявка глазами клиента.
type RequesterView struct {
	ID       string            `json:"id"`
	Target   string            `json:"target"`
	ShopName string            `json:"shop_name,omitempty"`
	Spec     model.RequestSpec `json:"spec"`
	FileName string            `json:"file_name"`
	FileSize int64             `json:"file_size"`
	Status   model.Status      `json:"status"`
	Action   model.Action      `json:"action"`

	RequestTime time.Time `json:"request_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// TargetView — заявка глазами магазина.
type TargetView struct {
	ID             string            `json:"id"`
	Requester      string            `json:"requester"`
	RequesterEmail string            `json:"requester_email,omitempty"`
	Spec           model.RequestSpec `json:"spec"`
	FileName       string            `json:"file_name"`
	FileSize       int64             `json:"file_size"`
	ContentType    string            `json:"content_type"`
	Status         model.Status      `json:"status"`
	Action         model.Action      `json:"action"`

	RequestTime time.Time `json:"request_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// ProjectForRequester строит проекцию заявки для клиента.
// shopName — имя магазина из каталога, пустая строка допустима.
func ProjectForRequester(req *model.PrintRequest, shopName string) *RequesterView {
	return &RequesterView{
		ID:          req.ID,
		Target:      req.Target,
		ShopName:    shopName,
		Spec:        req.Spec,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		Status:      req.Status,
		Action:      req.Action,
		RequestTime: req.RequestTime,
		UpdateTime:  req.UpdateTime,
	}
}

// ProjectForTarget строит проекцию заявки для магазина.
func ProjectForTarget(req *model.PrintRequest) *TargetView {
	return &TargetView{
		ID:             req.ID,
		Requester:      req.Requester,
		RequesterEmail: req.RequesterEmail,
		Spec:           req.Spec,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ContentType:    req.ContentType,
		Status:         req.Status,
		Action:         req.Action,
		RequestTime:    req.RequestTime,
		UpdateTime:     req.UpdateTime,
	}
}
