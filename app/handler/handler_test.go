package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"binkeeper"
	"binkeeper/app/middleware"
	m "binkeeper/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAuthKey = "test-jwt-key"
	testPasskey = "open-sesame"
)

func setupApp(t *testing.T, k KeeperService, r ActivityRetriever) *fiber.App {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPasskey), bcrypt.MinCost)
	require.NoError(t, err)

	app := fiber.New()
	middleware.SetupMiddleware(app)
	NewAuthHandler(testAuthKey, string(hash)).InitRoute(app)
	NewPositionHandler(k, r).InitRoute(app)
	return app
}

func sendRequest(app *fiber.App, url, method, token string, param any, resp any) (int, error) {

	var body io.Reader
	if param != nil {
		b, err := json.Marshal(param)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, err
	}
	if res.StatusCode != fiber.StatusOK {
		return res.StatusCode, fmt.Errorf("%s", raw)
	}
	if resp != nil {
		return res.StatusCode, json.Unmarshal(raw, resp)
	}
	return res.StatusCode, nil
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()

	var resp JWTResponse
	_, err := sendRequest(app, "/auth", "POST", "", LoginReq{Passkey: testPasskey}, &resp)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthHandler(t *testing.T) {

	app := setupApp(t, &KeeperServiceMock{}, &ActivityRetrieverMock{})

	t.Run("로그인 성공", func(t *testing.T) {
		token := login(t, app)

		code, err := sendRequest(app, "/status", "GET", token, nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, code)
	})

	t.Run("잘못된 패스키", func(t *testing.T) {
		code, err := sendRequest(app, "/auth", "POST", "", LoginReq{Passkey: "wrong"}, nil)
		assert.Error(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("토큰 없음", func(t *testing.T) {
		code, err := sendRequest(app, "/status", "GET", "", nil, nil)
		assert.Error(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("위조 토큰", func(t *testing.T) {
		code, _ := sendRequest(app, "/status", "GET", "not.a.jwt", nil, nil)
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("로그인 비활성", func(t *testing.T) {
		disabled := fiber.New()
		middleware.SetupMiddleware(disabled)
		NewAuthHandler("", "").InitRoute(disabled)

		code, _ := sendRequest(disabled, "/auth", "POST", "", LoginReq{Passkey: testPasskey}, nil)
		assert.Equal(t, fiber.StatusForbidden, code)
	})
}

func TestPositionHandler(t *testing.T) {

	keeperMock := &KeeperServiceMock{
		status: binkeeper.Status{
			State:      "HasPosition(7)",
			PositionID: "7",
			Range:      &m.BinRange{Lower: -2, Upper: 18},
			InRange:    true,
		},
		inRange: map[m.PositionID]bool{"7": true, "9": false},
	}
	journalMock := &ActivityRetrieverMock{
		acts: []m.Activity{
			{ID: 2, Kind: m.ActivityCreate, PositionID: "7", TxHash: "0x02"},
			{ID: 1, Kind: m.ActivityRemove, PositionID: "5", TxHash: "0x01"},
		},
	}
	app := setupApp(t, keeperMock, journalMock)
	token := login(t, app)

	t.Run("상태 조회", func(t *testing.T) {
		var resp binkeeper.Status
		_, err := sendRequest(app, "/status", "GET", token, nil, &resp)
		require.NoError(t, err)

		assert.Equal(t, "HasPosition(7)", resp.State)
		assert.Equal(t, &m.BinRange{Lower: -2, Upper: 18}, resp.Range)
	})

	t.Run("이력 조회", func(t *testing.T) {
		var resp []m.Activity
		_, err := sendRequest(app, "/activities?limit=5", "GET", token, nil, &resp)
		require.NoError(t, err)

		assert.Len(t, resp, 2)
		assert.Equal(t, 5, journalMock.limit)
		assert.Equal(t, m.ActivityCreate, resp[0].Kind)
	})

	t.Run("이력 조회 기본 개수", func(t *testing.T) {
		_, err := sendRequest(app, "/activities", "GET", token, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, defaultActivityLimit, journalMock.limit)
	})

	t.Run("이력 조회 잘못된 개수", func(t *testing.T) {
		code, _ := sendRequest(app, "/activities?limit=0", "GET", token, nil, nil)
		assert.Equal(t, fiber.StatusBadRequest, code)
	})

	t.Run("관리 포지션 범위", func(t *testing.T) {
		var resp InRangeResp
		_, err := sendRequest(app, "/position/inrange", "GET", token, nil, &resp)
		require.NoError(t, err)
		assert.Equal(t, InRangeResp{PositionID: "7", InRange: true}, resp)
	})

	t.Run("지정 포지션 범위", func(t *testing.T) {
		var resp InRangeResp
		_, err := sendRequest(app, "/position/inrange?id=9", "GET", token, nil, &resp)
		require.NoError(t, err)
		assert.False(t, resp.InRange)
	})

	t.Run("범위 조회 실패", func(t *testing.T) {
		keeperMock.err = errors.New("rpc down")
		defer func() { keeperMock.err = nil }()

		code, err := sendRequest(app, "/position/inrange?id=9", "GET", token, nil, nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, code)
		assert.ErrorContains(t, err, "rpc down")
	})
}

func TestNoManagedPosition(t *testing.T) {

	app := setupApp(t, &KeeperServiceMock{status: binkeeper.Status{State: "NoPosition"}}, &ActivityRetrieverMock{})
	token := login(t, app)

	code, _ := sendRequest(app, "/position/inrange", "GET", token, nil, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}
