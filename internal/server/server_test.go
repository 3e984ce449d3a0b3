package server

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_vault/internal/config"
	"github.com/congo-pay/custody_vault/internal/custody"
	"github.com/congo-pay/custody_vault/internal/identity"
	"github.com/congo-pay/custody_vault/internal/logging"
	"github.com/congo-pay/custody_vault/internal/routes"
)

var (
	ownerKey    = mustKey("289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032")
	vaultKey    = mustKey("45a915e4d060149eb4365960e6a7a45f334393093061116b197e3240065ff2d8")
	aliceKey    = mustKey("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	strangerKey = mustKey("8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a")

	ownerAddr = crypto.PubkeyToAddress(ownerKey.PublicKey)
	vaultAddr = crypto.PubkeyToAddress(vaultKey.PublicKey)
	aliceAddr = crypto.PubkeyToAddress(aliceKey.PublicKey)
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000000071")
)

const testSecret = "s3cret-pass"

func mustKey(hex string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		panic(err)
	}
	return key
}

type harness struct {
	t     *testing.T
	app   *fiber.App
	cache *redis.Client
	book  *custody.Book
}

type response struct {
	status  int
	body    map[string]any
	raw     string
	headers http.Header
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppName:            "vault-test",
		AppEnv:             "test",
		Owner:              ownerAddr,
		Custodian:          vaultAddr,
		JWTSecret:          "access",
		RefreshSecret:      "refresh",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		IdempotencyTTL:     time.Minute,
		EventStream:        "vault:events",
		RateLimitPerMinute: 1000,
	}
	book := custody.NewBook(vaultAddr)
	srv, err := New(cfg, routes.Deps{Cache: cache, Logger: logging.Discard(), Custody: book})
	require.NoError(t, err)
	return &harness{t: t, app: srv.App(), cache: cache, book: book}
}

func (h *harness) do(method, path, token, idemKey string, body any) response {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = strings.NewReader(string(payload))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if method != http.MethodGet {
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	out := response{status: resp.StatusCode, raw: string(raw), headers: resp.Header}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &out.body))
	}
	return out
}

// registration builds a register body for account signed by key.
func (h *harness) registration(key *ecdsa.PrivateKey, account common.Address) map[string]string {
	h.t.Helper()
	msg := identity.RegistrationMessage(account, testSecret)
	sig, err := crypto.Sign(personalSignHash(msg), key)
	require.NoError(h.t, err)
	return map[string]string{"account": account.Hex(), "secret": testSecret, "signature": hexutil.Encode(sig)}
}

func personalSignHash(msg []byte) []byte {
	return crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n"+strconv.Itoa(len(msg))), msg)
}

func (h *harness) login(key *ecdsa.PrivateKey) string {
	h.t.Helper()
	account := crypto.PubkeyToAddress(key.PublicKey)
	r := h.do(http.MethodPost, "/api/v1/auth/register", "", "", h.registration(key, account))
	require.Equal(h.t, http.StatusCreated, r.status, r.raw)
	creds := map[string]string{"account": account.Hex(), "secret": testSecret}
	r = h.do(http.MethodPost, "/api/v1/auth/login", "", "", creds)
	require.Equal(h.t, http.StatusOK, r.status, r.raw)
	token, _ := r.body["access_token"].(string)
	require.NotEmpty(h.t, token)
	return token
}

func errorCode(r response) string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestVaultFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	ownerToken := h.login(ownerKey)
	aliceToken := h.login(aliceKey)
	token := tokenAddr.Hex()

	r := h.do(http.MethodGet, "/api/v1/owner", "", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	require.Equal(t, ownerAddr.Hex(), r.body["owner"])

	// Non-owner cannot whitelist.
	r = h.do(http.MethodPut, "/api/v1/admin/assets/"+token, aliceToken, "", map[string]bool{"accepted": true})
	require.Equal(t, http.StatusForbidden, r.status)
	require.Equal(t, "unauthorized", errorCode(r))
	require.NotEmpty(t, r.body["request_id"])

	r = h.do(http.MethodPut, "/api/v1/admin/assets/"+token, ownerToken, "", map[string]bool{"accepted": true})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	require.Equal(t, "WhitelistUpdated", r.body["kind"])

	r = h.do(http.MethodGet, "/api/v1/assets/"+token, "", "", nil)
	require.Equal(t, true, r.body["whitelisted"])

	r = h.do(http.MethodPost, "/api/v1/dev/tokens/"+token+"/mint", aliceToken, "", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	r = h.do(http.MethodPost, "/api/v1/dev/tokens/"+token+"/approve", aliceToken, "", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, r.status, r.raw)

	deposit := map[string]string{"asset": token, "amount": "60"}
	first := h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "dep-1", deposit)
	require.Equal(t, http.StatusCreated, first.status, first.raw)
	require.Equal(t, "60", first.body["balance"])

	// Replaying the key returns the stored response without a second deposit.
	replay := h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "dep-1", deposit)
	require.Equal(t, http.StatusCreated, replay.status)
	require.Equal(t, first.raw, replay.raw)
	require.Equal(t, "true", replay.headers.Get("Idempotent-Replayed"))

	r = h.do(http.MethodGet, "/api/v1/balances/"+aliceAddr.Hex()+"/"+token, "", "", nil)
	require.Equal(t, "60", r.body["balance"])
	require.EqualValues(t, 60, h.book.BalanceOf(tokenAddr, vaultAddr).Uint64())

	r = h.do(http.MethodPost, "/api/v1/withdrawals", aliceToken, "", map[string]string{"asset": token, "amount": "100"})
	require.Equal(t, http.StatusUnprocessableEntity, r.status)
	require.Equal(t, "insufficient_balance", errorCode(r))

	r = h.do(http.MethodPost, "/api/v1/withdrawals", aliceToken, "", map[string]string{"asset": token, "amount": "25"})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	require.Equal(t, "35", r.body["balance"])

	r = h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "", map[string]string{"asset": token, "amount": "0"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "zero_amount", errorCode(r))

	r = h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "", map[string]string{"asset": token, "amount": "-5"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "invalid_amount", errorCode(r))

	// Pause gate.
	r = h.do(http.MethodPost, "/api/v1/admin/pause", ownerToken, "", nil)
	require.Equal(t, http.StatusOK, r.status, r.raw)
	r = h.do(http.MethodPost, "/api/v1/admin/pause", ownerToken, "", nil)
	require.Equal(t, http.StatusConflict, r.status)
	require.Equal(t, "already_paused", errorCode(r))
	r = h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "", map[string]string{"asset": token, "amount": "1"})
	require.Equal(t, http.StatusLocked, r.status)
	require.Equal(t, "enforced_pause", errorCode(r))
	r = h.do(http.MethodPost, "/api/v1/admin/unpause", ownerToken, "", nil)
	require.Equal(t, http.StatusOK, r.status)
	r = h.do(http.MethodPost, "/api/v1/admin/unpause", ownerToken, "", nil)
	require.Equal(t, "not_paused", errorCode(r))

	r = h.do(http.MethodGet, "/api/v1/events?after=0&limit=100", "", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	list, _ := r.body["events"].([]any)
	require.Len(t, list, 5) // whitelist, deposit, withdraw, pause, unpause
	require.EqualValues(t, 5, r.body["next"])

	n, err := h.cache.XLen(context.Background(), "vault:events").Result()
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
}

func TestOwnershipTransferOverHTTP(t *testing.T) {
	h := newHarness(t)
	ownerToken := h.login(ownerKey)
	aliceToken := h.login(aliceKey)

	r := h.do(http.MethodPost, "/api/v1/admin/ownership", ownerToken, "", map[string]string{"new_owner": "0x0000000000000000000000000000000000000000"})
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "invalid_account", errorCode(r))

	r = h.do(http.MethodPost, "/api/v1/admin/ownership", ownerToken, "", map[string]string{"new_owner": aliceAddr.Hex()})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	require.Equal(t, aliceAddr.Hex(), r.body["new_owner"])

	r = h.do(http.MethodPost, "/api/v1/admin/pause", ownerToken, "", nil)
	require.Equal(t, http.StatusForbidden, r.status)
	r = h.do(http.MethodPost, "/api/v1/admin/pause", aliceToken, "", nil)
	require.Equal(t, http.StatusOK, r.status)
}

func TestRegisterNeedsAccountKey(t *testing.T) {
	h := newHarness(t)

	// A stranger signs with their own key but claims the owner account.
	r := h.do(http.MethodPost, "/api/v1/auth/register", "", "", h.registration(strangerKey, ownerAddr))
	require.Equal(t, http.StatusUnauthorized, r.status, r.raw)
	require.Equal(t, "unauthorized", errorCode(r))

	unsigned := map[string]string{"account": ownerAddr.Hex(), "secret": testSecret}
	r = h.do(http.MethodPost, "/api/v1/auth/register", "", "", unsigned)
	require.Equal(t, http.StatusBadRequest, r.status, r.raw)

	r = h.do(http.MethodPost, "/api/v1/auth/login", "", "", unsigned)
	require.Equal(t, http.StatusUnauthorized, r.status)

	// The custodian never acts as a caller, even with its own key.
	r = h.do(http.MethodPost, "/api/v1/auth/register", "", "", h.registration(vaultKey, vaultAddr))
	require.Equal(t, http.StatusForbidden, r.status, r.raw)

	// The owner key still registers, and only the owner can pause.
	strangerToken := h.login(strangerKey)
	r = h.do(http.MethodPost, "/api/v1/admin/pause", strangerToken, "", nil)
	require.Equal(t, http.StatusForbidden, r.status)
	ownerToken := h.login(ownerKey)
	r = h.do(http.MethodPost, "/api/v1/admin/pause", ownerToken, "", nil)
	require.Equal(t, http.StatusOK, r.status, r.raw)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/api/v1/deposits", "", "", map[string]string{"asset": tokenAddr.Hex(), "amount": "1"})
	require.Equal(t, http.StatusUnauthorized, r.status)
	require.Equal(t, "unauthorized", errorCode(r))

	r = h.do(http.MethodGet, "/api/v1/balances/nope/"+tokenAddr.Hex(), "", "", nil)
	require.Equal(t, http.StatusBadRequest, r.status)
	require.Equal(t, "invalid_account", errorCode(r))
}

func TestLogoutRevokesAccess(t *testing.T) {
	h := newHarness(t)
	aliceToken := h.login(aliceKey)

	r := h.do(http.MethodPost, "/api/v1/auth/logout", aliceToken, "", nil)
	require.Equal(t, http.StatusOK, r.status, r.raw)

	r = h.do(http.MethodPost, "/api/v1/deposits", aliceToken, "", map[string]string{"asset": tokenAddr.Hex(), "amount": "1"})
	require.Equal(t, http.StatusUnauthorized, r.status)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	r := h.do(http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	status, _ := r.body["status"].(map[string]any)
	require.Equal(t, "ok", status["redis"])
	require.Equal(t, "disabled", status["postgres"])
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, "too_many_requests", statusCode(http.StatusTooManyRequests))
	require.Equal(t, "error", statusCode(799))
}
