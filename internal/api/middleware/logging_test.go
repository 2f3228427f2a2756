package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// captureLogger возвращает slog-логгер, пишущий JSON в буфер.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

// lastLogLine разбирает последнюю JSON-строку из буфера.
func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("лог пуст")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("некорректный JSON в логе: %v", err)
	}
	return entry
}

// TestRequestLogger_Levels проверяет выбор уровня по статус-коду.
func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "INFO"},
		{"клиентская ошибка", http.StatusNotFound, "WARN"},
		{"серверная ошибка", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := captureLogger()
			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entry := lastLogLine(t, buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, ожидался %s", entry["level"], tt.wantLevel)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, ожидался %d", entry["status"], tt.status)
			}
			if entry["path"] != "/api/v1/requests" {
				t.Errorf("path = %v", entry["path"])
			}
		})
	}
}

// TestRequestLogger_QuietPaths проверяет, что probes пишутся на DEBUG.
func TestRequestLogger_QuietPaths(t *testing.T) {
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			logger, buf := captureLogger()
			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, path, nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entry := lastLogLine(t, buf)
			if entry["level"] != "DEBUG" {
				t.Errorf("level = %v, ожидался DEBUG для %s", entry["level"], path)
			}
		})
	}
}

// TestRequestLogger_PrincipalAttrs проверяет, что строка лога
// содержит sub и role аутентифицированного принципала.
func TestRequestLogger_PrincipalAttrs(t *testing.T) {
	logger, buf := captureLogger()
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Имитация JWT middleware глубже по цепочке
		NotePrincipal(r.Context(), &Principal{Subject: "shop-1", Role: RoleShopkeeper})
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogLine(t, buf)
	if entry["sub"] != "shop-1" {
		t.Errorf("sub = %v, ожидался shop-1", entry["sub"])
	}
	if entry["role"] != "shopkeeper" {
		t.Errorf("role = %v, ожидался shopkeeper", entry["role"])
	}
}

// TestRequestLogger_AnonymousRequest проверяет лог без принципала.
func TestRequestLogger_AnonymousRequest(t *testing.T) {
	logger, buf := captureLogger()
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogLine(t, buf)
	if _, ok := entry["sub"]; ok {
		t.Errorf("sub не должен присутствовать для анонимного запроса: %v", entry["sub"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, ожидался WARN", entry["level"])
	}
}

// TestNotePrincipal_OutsideChain проверяет no-op вне цепочки логгера.
func TestNotePrincipal_OutsideChain(t *testing.T) {
	// Контекст без principalNote — вызов не должен паниковать
	NotePrincipal(context.Background(), &Principal{Subject: "u-1", Role: RoleCustomer})
}
