package router_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	apiHandler "github.com/fastygo/stakes/api/handler"
	"github.com/fastygo/stakes/domain"
	"github.com/fastygo/stakes/internal/infrastructure/monitor"
	"github.com/fastygo/stakes/internal/infrastructure/payment"
	"github.com/fastygo/stakes/internal/middleware"
	"github.com/fastygo/stakes/internal/router"
	"github.com/fastygo/stakes/internal/services"
	"github.com/fastygo/stakes/pkg/httpcontext"
	"github.com/fastygo/stakes/pkg/jwtauth"
	"github.com/fastygo/stakes/repository/memory"
	authUC "github.com/fastygo/stakes/usecase/auth"
	profileUC "github.com/fastygo/stakes/usecase/profile"
	taskUC "github.com/fastygo/stakes/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

type staticStatus struct{ status monitor.Status }

func (s staticStatus) GetStatus() monitor.Status { return s.status }

type server struct {
	handler fasthttp.RequestHandler
	gateway *payment.SandboxGateway
	clock   time.Time
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		gateway: payment.NewSandboxGateway(false),
		clock:   time.Now().UTC(),
	}

	users := memory.NewUserRepository()
	tokens := jwtauth.New("test-secret", "stakes", time.Hour)
	journal := services.NewJournal(nil, memory.NewEventRepository())
	adapter := httpcontext.NewAdapter(time.Second)

	tasks := taskUC.New(memory.NewTaskRepository(), s.gateway, memory.NewIdempotencyRepository(time.Hour), journal, nil, taskUC.Config{
		Currency: "usd",
		Now:      func() time.Time { return s.clock },
	})

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUC.New(users, tokens, bcrypt.MinCost, nil), adapter, nil),
		Profile: apiHandler.NewProfileHandler(profileUC.New(users, nil), adapter, nil),
		Task:    apiHandler.NewTaskHandler(tasks, adapter, nil),
		Health:  apiHandler.NewHealthHandler(staticStatus{monitor.Status{PostgreSQL: true, Redis: true}}, adapter, nil),
	}
	s.handler = router.New(handlers, middleware.JWTAuth(tokens, nil), nil)
	return s
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (int, envelope, *fasthttp.RequestCtx) {
	t.Helper()
	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	if token != "" {
		rc.Request.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		rc.Request.Header.Set(k, v)
	}
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		rc.Request.SetBodyString(raw)
		rc.Request.Header.SetContentType("application/json")
	}

	s.handler(&rc)

	var env envelope
	if len(rc.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(rc.Response.Body(), &env), string(rc.Response.Body()))
	}
	return rc.Response.StatusCode(), env, &rc
}

func (s *server) register(t *testing.T, email string) string {
	t.Helper()
	status, env, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ada", "email": email, "password": "password1",
	}, nil)
	require.Equal(t, http.StatusCreated, status, env.Error.Message)

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session.Token
}

type created struct {
	Task            domain.Task `json:"task"`
	ClientSecret    string      `json:"clientSecret"`
	PaymentIntentID string      `json:"paymentIntentId"`
}

func (s *server) createTask(t *testing.T, token string, due time.Time) created {
	t.Helper()
	status, env, _ := s.do(t, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title": "Write report", "description": "Q3", "dueDate": due.Format(time.RFC3339), "amount": 10,
	}, nil)
	require.Equal(t, http.StatusCreated, status, env.Error.Message)

	var out created
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, env, _ := s.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)

	status, env, rc := s.do(t, http.MethodGet, "/api/v1/tasks", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", env.Code)
	assert.Equal(t, "Bearer", string(rc.Response.Header.Peek("WWW-Authenticate")))

	status, _, _ = s.do(t, http.MethodGet, "/api/v1/tasks", "garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = s.do(t, http.MethodGet, "/api/v1/profile", "", nil, map[string]string{"X-User-ID": "spoofed"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginAndProfile(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	status, env, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "nope-nope",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", env.Code)

	status, env, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "password1",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))

	status, env, _ = s.do(t, http.MethodGet, "/api/v1/profile", session.Token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var profile struct {
		User map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "ada@example.com", profile.User["email"])
	assert.NotContains(t, profile.User, "password_hash")
}

func TestRegisterConflict(t *testing.T) {
	s := newServer(t)
	s.register(t, "ada@example.com")

	status, env, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "password1",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestTaskLifecycleOnTime(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "ada@example.com")

	task := s.createTask(t, token, s.clock.Add(24*time.Hour))
	assert.Equal(t, domain.TaskStatusPendingPayment, task.Task.Status)
	assert.NotEmpty(t, task.ClientSecret)
	confirmPath := fmt.Sprintf("/api/v1/tasks/%s/confirm-payment", task.Task.ID)

	status, env, _ := s.do(t, http.MethodPost, confirmPath, token, map[string]string{"paymentIntentId": task.PaymentIntentID}, nil)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "PAYMENT_NOT_COMPLETED", env.Code)

	require.NoError(t, s.gateway.SetStatus(task.PaymentIntentID, domain.PaymentStatusSucceeded))

	status, env, _ = s.do(t, http.MethodPost, confirmPath, token, map[string]string{"paymentIntentId": "pi_wrong"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env, _ = s.do(t, http.MethodPost, confirmPath, token, map[string]string{"paymentIntentId": task.PaymentIntentID}, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	var confirmed struct {
		Task domain.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &confirmed))
	assert.Equal(t, domain.TaskStatusActive, confirmed.Task.Status)

	status, env, _ = s.do(t, http.MethodPost, confirmPath, token, map[string]string{"paymentIntentId": task.PaymentIntentID}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Code)

	status, env, _ = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.Task.ID+"/complete", token, nil, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	var completed struct {
		Task    domain.Task    `json:"task"`
		Refund  *domain.Refund `json:"refund"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.Equal(t, domain.TaskStatusCompleted, completed.Task.Status)
	require.NotNil(t, completed.Refund)
	assert.Equal(t, completed.Refund.ID, completed.Task.RefundID)

	status, env, _ = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.Task.ID+"/events", token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var events []domain.TaskEvent
	require.NoError(t, json.Unmarshal(env.Data, &events))
	assert.Len(t, events, 3)
}

func TestTaskCompletedLate(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "ada@example.com")

	task := s.createTask(t, token, s.clock.Add(time.Hour))
	require.NoError(t, s.gateway.SetStatus(task.PaymentIntentID, domain.PaymentStatusSucceeded))
	status, _, _ := s.do(t, http.MethodPost, "/api/v1/tasks/"+task.Task.ID+"/confirm-payment", token,
		map[string]string{"paymentIntentId": task.PaymentIntentID}, nil)
	require.Equal(t, http.StatusOK, status)

	s.clock = s.clock.Add(2 * time.Hour)
	status, env, _ := s.do(t, http.MethodPost, "/api/v1/tasks/"+task.Task.ID+"/complete", token, nil, nil)
	require.Equal(t, http.StatusOK, status)

	var completed map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.NotContains(t, completed, "refund")
	assert.NotContains(t, completed, "refundError")
	assert.Equal(t, "completed_late", completed["task"].(map[string]interface{})["status"])
}

func TestCreateTaskIdempotencyHeader(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "ada@example.com")
	body := map[string]interface{}{"title": "Read", "dueDate": "2030-01-01", "amount": "12.50"}
	headers := map[string]string{"Idempotency-Key": "req-1"}

	first, env1, _ := s.do(t, http.MethodPost, "/api/v1/tasks", token, body, headers)
	second, env2, rc := s.do(t, http.MethodPost, "/api/v1/tasks", token, body, headers)

	assert.Equal(t, http.StatusCreated, first)
	assert.Equal(t, http.StatusOK, second)
	assert.Equal(t, "true", string(rc.Response.Header.Peek("Idempotent-Replayed")))

	var a, b created
	require.NoError(t, json.Unmarshal(env1.Data, &a))
	require.NoError(t, json.Unmarshal(env2.Data, &b))
	assert.Equal(t, a.Task.ID, b.Task.ID)
	assert.Equal(t, "12.5", a.Task.Amount.String())
}

func TestCreateTaskValidation(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "ada@example.com")

	cases := map[string]interface{}{
		"malformed json": "{",
		"bad due date":   map[string]interface{}{"title": "x", "dueDate": "tomorrow", "amount": 5},
		"zero amount":    map[string]interface{}{"title": "x", "dueDate": "2030-01-01T00:00:00Z", "amount": 0},
		"no title":       map[string]interface{}{"dueDate": "2030-01-01T00:00:00Z", "amount": 5},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, env, _ := s.do(t, http.MethodPost, "/api/v1/tasks", token, body, nil)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", env.Code)
		})
	}
}

func TestTasksAreScopedToOwner(t *testing.T) {
	s := newServer(t)
	ada := s.register(t, "ada@example.com")
	bob := s.register(t, "bob@example.com")

	task := s.createTask(t, ada, s.clock.Add(time.Hour))

	status, env, _ := s.do(t, http.MethodGet, "/api/v1/tasks/"+task.Task.ID, bob, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	status, _, _ = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.Task.ID+"/complete", bob, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env, _ = s.do(t, http.MethodGet, "/api/v1/tasks", bob, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var list []domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)

	status, env, _ = s.do(t, http.MethodGet, "/api/v1/tasks?status=pending_payment", ada, nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	status, _, _ = s.do(t, http.MethodGet, "/api/v1/tasks?status=bogus", ada, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = s.do(t, http.MethodGet, "/api/v1/tasks/does-not-exist", ada, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
