package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CS-Kiran/print-seva/order-module/internal/api/middleware"
)

// withPrincipal помещает принципала в контекст запроса,
// как это делает JWT middleware.
func withPrincipal(r *http.Request, p *middleware.Principal) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyPrincipal, p)
	return r.WithContext(ctx)
}

// TestListRequests_UnknownRole проверяет отказ для принципала
// с ролью вне известного набора.
func TestListRequests_UnknownRole(t *testing.T) {
	h := NewRequestsHandler(nil, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req = withPrincipal(req, &middleware.Principal{Subject: "u-1", Role: "auditor"})

	rec := httptest.NewRecorder()
	h.ListRequests(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, ожидался %d", rec.Code, http.StatusForbidden)
	}
	code, _ := errorResponse(t, rec)
	if code != "FORBIDDEN" {
		t.Errorf("code = %q, ожидался FORBIDDEN", code)
	}
}
