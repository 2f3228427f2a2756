// logging.go — middleware логирования HTTP-запросов Order Module.
// Перехватывает статус-код, размер ответа и длительность обработки.
// Строка лога дополняется принципалом (sub, role), если запрос прошёл
// аутентификацию; служебные endpoints (health, metrics) пишутся на
// уровне DEBUG, чтобы probes не забивали журнал.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// slowRequestThreshold — порог, после которого успешный запрос
// логируется как WARN. Заявки с документами до 50 MB укладываются
// в секунды; всё, что дольше, заслуживает внимания.
const slowRequestThreshold = 5 * time.Second

// quietPaths — endpoints, опрашиваемые kubelet и Prometheus.
// Логируются на уровне DEBUG, чтобы не заслонять бизнес-запросы.
var quietPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// loggedResponse — обёртка ResponseWriter, считающая статус и байты.
type loggedResponse struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (lr *loggedResponse) WriteHeader(code int) {
	lr.statusCode = code
	lr.ResponseWriter.WriteHeader(code)
}

func (lr *loggedResponse) Write(b []byte) (int, error) {
	n, err := lr.ResponseWriter.Write(b)
	lr.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController добраться до оригинального writer.
func (lr *loggedResponse) Unwrap() http.ResponseWriter {
	return lr.ResponseWriter
}

// principalNote — почтовый ящик для принципала в контексте запроса.
// JWT middleware работает глубже по цепочке и создаёт новый контекст,
// поэтому внешний логгер не видит Principal напрямую: он кладёт note
// до вызова next, auth заполняет его после валидации токена.
type principalNote struct {
	principal *Principal
}

type principalNoteKey struct{}

// NotePrincipal сообщает логгеру запроса аутентифицированного принципала.
// Вызывается JWT middleware; вне цепочки RequestLogger — no-op.
func NotePrincipal(ctx context.Context, p *Principal) {
	if note, ok := ctx.Value(principalNoteKey{}).(*principalNote); ok {
		note.principal = p
	}
}

// RequestLogger возвращает middleware, логирующий каждый HTTP-запрос:
// метод, путь, статус, длительность, размер ответа, remote_addr и,
// для аутентифицированных запросов, sub и role принципала.
// Уровень: DEBUG для health/metrics, WARN для 4xx и медленных запросов,
// ERROR для 5xx, иначе INFO.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &loggedResponse{ResponseWriter: w, statusCode: http.StatusOK}

			note := &principalNote{}
			ctx := context.WithValue(r.Context(), principalNoteKey{}, note)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			level := slog.LevelInfo
			slow := false
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			case quietPaths[r.URL.Path]:
				level = slog.LevelDebug
			case duration >= slowRequestThreshold:
				level = slog.LevelWarn
				slow = true
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", duration),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if p := note.principal; p != nil {
				attrs = append(attrs,
					slog.String("sub", p.Subject),
					slog.String("role", string(p.Role)),
				)
			}
			if slow {
				attrs = append(attrs, slog.Bool("slow", true))
			}

			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
