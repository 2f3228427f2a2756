// auth.go — JWT middleware для аутентификации и авторизации.
// Использует RS256 + JWKS для валидации токенов от Identity Provider.
// Роль (customer | shopkeeper) определяется по membership в группах.
// Публичные endpoints (health, metrics, каталог магазинов) — без аутентификации.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/CS-Kiran/print-seva/order-module/internal/api/errors"
)

// Role — роль аутентифицированного пользователя.
type Role string

const (
	// RoleCustomer — клиент, создающий заявки на печать.
	RoleCustomer Role = "customer"
	// RoleShopkeeper — владелец печатного магазина.
	RoleShopkeeper Role = "shopkeeper"
)

// Principal — аутентифицированный пользователь запроса.
type Principal struct {
	// Subject — sub из JWT, стабильный идентификатор пользователя.
	Subject string
	// Role — роль, выведенная из групп токена.
	Role Role
	// Email и Name — для карточек заявок и профилей.
	Email string
	Name  string
}

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — ключ для Principal в контексте запроса.
const ContextKeyPrincipal contextKey = "auth_principal"

// Claims — структура JWT claims Order Module.
// Группы Keycloak приходят в claim "groups" (массив путей вида
// /print-seva-customers). Email и name — стандартные OIDC claims.
type Claims struct {
	jwt.RegisteredClaims
	Groups []string `json:"groups"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks             keyfunc.Keyfunc
	issuer           string
	jwtLeeway        time.Duration
	customerGroups   []string
	shopkeeperGroups []string
	logger           *slog.Logger
}

// JWTAuthConfig — параметры для создания JWT middleware.
type JWTAuthConfig struct {
	// URL JWKS endpoint
	JWKSURL string
	// Ожидаемый issuer токена; пустой — iss не проверяется
	Issuer string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Группы, дающие роль customer
	CustomerGroups []string
	// Группы, дающие роль shopkeeper
	ShopkeeperGroups []string
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
// Все параметры (таймауты, TLS, интервалы, группы) берутся из JWTAuthConfig.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать даже если JWKS endpoint
	// ещё недоступен (например, при одновременном запуске pod-ов).
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:             k,
		issuer:           authCfg.Issuer,
		jwtLeeway:        authCfg.JWTLeeway,
		customerGroups:   authCfg.CustomerGroups,
		shopkeeperGroups: authCfg.ShopkeeperGroups,
		logger:           logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// buildHTTPClient создаёт HTTP-клиент с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{}

	// Добавляем CA-сертификат, если указан
	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, authCfg JWTAuthConfig, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:             kf,
		issuer:           authCfg.Issuer,
		jwtLeeway:        authCfg.JWTLeeway,
		customerGroups:   authCfg.CustomerGroups,
		shopkeeperGroups: authCfg.ShopkeeperGroups,
		logger:           logger.With(slog.String("component", "jwt_auth")),
	}
}

// resolveRole выводит роль из групп токена.
// shopkeeper имеет приоритет: пользователь в обеих группах — магазин.
func (j *JWTAuth) resolveRole(groups []string) (Role, bool) {
	for _, g := range groups {
		if slices.Contains(j.shopkeeperGroups, g) {
			return RoleShopkeeper, true
		}
	}
	for _, g := range groups {
		if slices.Contains(j.customerGroups, g) {
			return RoleCustomer, true
		}
	}
	return "", false
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token из заголовка Authorization, валидирует подпись (RS256),
// проверяет exp/nbf, выводит роль из групп и помещает Principal в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Парсинг и валидация JWT
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				opts = append(opts, jwt.WithIssuer(j.issuer))
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()), opts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			role, ok := j.resolveRole(claims.Groups)
			if !ok {
				j.logger.Debug("Токен без групп Print Seva",
					slog.String("sub", subject),
				)
				apierrors.Forbidden(w, "Пользователь не входит ни в одну группу Print Seva")
				return
			}

			principal := &Principal{
				Subject: subject,
				Role:    role,
				Email:   claims.Email,
				Name:    claims.Name,
			}
			NotePrincipal(r.Context(), principal)

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole возвращает middleware, проверяющий роль пользователя.
// Если роль не совпадает — возвращает 403 Forbidden.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				apierrors.Unauthorized(w, "Запрос без аутентификации")
				return
			}
			if principal.Role != role {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль "+string(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil, если запрос не прошёл аутентификацию.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(ContextKeyPrincipal).(*Principal)
	return principal
}

// Close освобождает ресурсы JWKS (останавливает фоновое обновление).
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия для NewDefault
}
