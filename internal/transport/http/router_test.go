package httptransport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"undertone/internal/admin"
	"undertone/internal/audit"
	"undertone/internal/board"
	"undertone/internal/credential"
	"undertone/internal/keyring"
	"undertone/internal/lockout"
	"undertone/internal/platform/metrics"
	"undertone/internal/session"
	"undertone/internal/social"
	"undertone/internal/subject"
	"undertone/internal/user"
)

// testCreds keeps the KDF cheap so lockout tests stay fast.
var testCreds = credential.Params{
	SecretSize:        32,
	Iterations:        16,
	MinPasswordLength: 8,
}

type RouterSuite struct {
	suite.Suite
	server      *httptest.Server
	adminID     string
	adminSecret []byte
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	mx := metrics.New(prometheus.NewRegistry())

	resolver := &subject.Resolver{}
	presence := &subject.Presence{}
	sessions := session.New(session.NewInMemoryStore(), resolver,
		session.WithMetrics(mx),
		session.WithPresenceSink(presence),
	)

	adminStore := admin.NewInMemoryStore()
	auditLogger := audit.New(audit.NewInMemoryStore(), audit.WithMetrics(mx))
	keys := keyring.New(keyring.NewInMemoryStore())

	directory := &subject.Directory{}
	socials := social.New(social.NewInMemoryStore(), social.WithDirectory(directory))

	users := user.New(user.NewInMemoryStore(), sessions,
		user.WithMetrics(mx),
		user.WithCredentialParams(testCreds),
		user.WithLockoutPolicy(lockout.Policy{MaxAttempts: 3, LockDuration: time.Hour}),
		user.WithKeySink(keys),
		user.WithFriendChecker(socials),
	)
	admins := admin.New(adminStore, sessions, auditLogger,
		admin.WithMetrics(mx),
		admin.WithCredentialParams(testCreds),
	)
	boards := board.New(board.NewInMemoryStore(), board.WithFriendChecker(socials))

	resolver.Users = users
	resolver.Admins = admins
	presence.Target = users
	directory.Users = users

	seed, err := admin.EnsureSeedAdmin(context.Background(), adminStore, testCreds, "root_admin", nil)
	s.Require().NoError(err)
	s.Require().True(seed.Created)
	s.adminID = seed.ID.String()
	s.adminSecret = seed.Secret

	router := NewRouter(&Handlers{
		Users:    users,
		Admins:   admins,
		Social:   socials,
		Keys:     keys,
		Boards:   boards,
		Sessions: sessions,
		About: About{
			Version:         "test",
			ServerName:      "undertone-test",
			UserSessionTTL:  15 * time.Minute,
			AdminSessionTTL: 2 * time.Minute,
		},
		Metrics: mx,
	})
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

// request sends a JSON request and decodes the JSON response body.
func (s *RouterSuite) request(method, path string, body any) (*http.Response, map[string]any) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (s *RouterSuite) requestList(method, path string) (*http.Response, []any) {
	req, err := http.NewRequest(method, s.server.URL+path, nil)
	s.Require().NoError(err)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded []any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *RouterSuite) createUser(name, password string) string {
	resp, body := s.request(http.MethodPost, "/user", map[string]any{
		"name":     name,
		"password": password,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return body["userId"].(string)
}

func (s *RouterSuite) loginUser(userID, password string) string {
	resp, body := s.request(http.MethodPost, "/user/"+userID+"/login", map[string]any{
		"password": password,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	return body["sessionId"].(string)
}

func (s *RouterSuite) TestAboutAndHealth() {
	resp, body := s.request(http.MethodGet, "/", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("undertone-test", body["serverName"])
	s.Equal(float64(900), body["sessionDuration"])

	resp, body = s.request(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
}

func (s *RouterSuite) TestUserLifecycle() {
	userID := s.createUser("alice_test", "correct horse")

	resp, body := s.request(http.MethodGet, "/user/queryidbyname?name=alice_test", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(userID, body["userId"])

	resp, body = s.request(http.MethodPost, "/user/"+userID+"/login", map[string]any{
		"password": "wrong password",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("AuthError", body["error"])
	s.Equal(realmUser, resp.Header.Get("WWW-Authenticate"))

	sessionID := s.loginUser(userID, "correct horse")

	resp, _ = s.request(http.MethodPost, "/user/"+userID+"/heartbeat?sessionId="+sessionID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, body = s.request(http.MethodGet, "/user/"+userID+"?sessionId="+sessionID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("alice_test", body["name"])
	s.Equal("online", body["presence"])

	resp, _ = s.request(http.MethodPost, "/user/"+userID+"/logout?sessionId="+sessionID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, body = s.request(http.MethodPost, "/user/"+userID+"/heartbeat?sessionId="+sessionID, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("NoObjectWithId", body["error"])
}

func (s *RouterSuite) TestDuplicateName() {
	s.createUser("alice_test", "correct horse")
	resp, body := s.request(http.MethodPost, "/user", map[string]any{
		"name":     "alice_test",
		"password": "correct horse",
	})
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("NameTaken", body["error"])
}

func (s *RouterSuite) TestLockoutResponse() {
	userID := s.createUser("alice_test", "correct horse")

	var resp *http.Response
	var body map[string]any
	for i := 0; i < 3; i++ {
		resp, body = s.request(http.MethodPost, "/user/"+userID+"/login", map[string]any{
			"password": "wrong password",
		})
	}
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("UserLocked", body["error"])
	s.Contains(body["lockReason"], "TooManyPasswordAttempts")
	s.NotEmpty(body["lockExpiry"])

	// The right password is refused while the lock holds.
	resp, body = s.request(http.MethodPost, "/user/"+userID+"/login", map[string]any{
		"password": "correct horse",
	})
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("UserLocked", body["error"])
}

func (s *RouterSuite) TestFriendAndDirectBoardFlow() {
	aliceID := s.createUser("alice_test", "correct horse")
	bobID := s.createUser("bob_test", "correct horse")
	aliceSession := s.loginUser(aliceID, "correct horse")
	bobSession := s.loginUser(bobID, "correct horse")

	// A direct board before friendship is refused.
	resp, body := s.request(http.MethodPost, "/board/direct?sessionId="+aliceSession, map[string]any{
		"recipientId": bobID,
	})
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("NotFriends", body["error"])

	resp, _ = s.request(http.MethodPost, "/user/"+bobID+"/friendrequests?sessionId="+aliceSession, nil)
	s.Equal(http.StatusCreated, resp.StatusCode)

	_, requests := s.requestList(http.MethodGet, "/user/"+bobID+"/friendrequests?sessionId="+bobSession)
	s.Require().Len(requests, 1)
	s.Equal(aliceID, requests[0].(map[string]any)["senderId"])

	resp, _ = s.request(http.MethodPost, "/user/"+bobID+"/friendrequests/"+aliceID+"?sessionId="+bobSession, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	_, friends := s.requestList(http.MethodGet, "/user/"+aliceID+"/friends?sessionId="+aliceSession)
	s.Equal([]any{bobID}, friends)

	resp, body = s.request(http.MethodPost, "/board/direct?sessionId="+aliceSession, map[string]any{
		"recipientId": bobID,
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	boardID := body["boardId"].(string)

	// The recipient opening the same conversation reuses the board.
	resp, body = s.request(http.MethodPost, "/board/direct?sessionId="+bobSession, map[string]any{
		"recipientId": aliceID,
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(boardID, body["boardId"])
}

func (s *RouterSuite) TestBoardFlow() {
	aliceID := s.createUser("alice_test", "correct horse")
	bobID := s.createUser("bob_test", "correct horse")
	aliceSession := s.loginUser(aliceID, "correct horse")
	bobSession := s.loginUser(bobID, "correct horse")

	resp, body := s.request(http.MethodPost, "/board?sessionId="+aliceSession, map[string]any{
		"name": "general_chat",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	boardID := body["boardId"].(string)

	// Non-members cannot read the board.
	resp, body = s.request(http.MethodGet, "/board/"+boardID+"?sessionId="+bobSession, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("NotAuthorized", body["error"])

	resp, _ = s.request(http.MethodPost, "/board/"+boardID+"/members?sessionId="+aliceSession, map[string]any{
		"userId": bobID,
	})
	s.Equal(http.StatusCreated, resp.StatusCode)

	resp, body = s.request(http.MethodPost, "/board/"+boardID+"/messages?sessionId="+bobSession, map[string]any{
		"content": []byte("hello"),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.NotEmpty(body["messageId"])

	_, messages := s.requestList(http.MethodGet,
		"/board/"+boardID+"/messages?sessionId="+aliceSession+"&onlySystem=false&type=Message")
	s.Require().Len(messages, 1)
	s.Equal(bobID, messages[0].(map[string]any)["authorId"])
}

func (s *RouterSuite) TestKeyFlow() {
	userID := s.createUser("alice_test", "correct horse")
	sessionID := s.loginUser(userID, "correct horse")

	resp, body := s.request(http.MethodPost, "/user/"+userID+"/keys?sessionId="+sessionID, map[string]any{
		"publicKey": []byte("key material"),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	keyID := body["keyId"].(string)

	_, infos := s.requestList(http.MethodGet, "/user/"+userID+"/keys?sessionId="+sessionID)
	s.Require().Len(infos, 1)
	s.Equal(keyID, infos[0].(map[string]any)["id"])

	// Raw fetch needs no session and carries metadata out of band.
	raw, err := s.server.Client().Get(s.server.URL + "/key/" + keyID)
	s.Require().NoError(err)
	defer raw.Body.Close()
	s.Equal(http.StatusOK, raw.StatusCode)
	s.Equal("application/octet-stream", raw.Header.Get("Content-Type"))
	s.NotEmpty(raw.Header.Get("X-Metadata"))
	data, err := io.ReadAll(raw.Body)
	s.Require().NoError(err)
	s.Equal([]byte("key material"), data)
}

func (s *RouterSuite) adminLogin() string {
	resp, body := s.request(http.MethodGet, "/admin/login/challenge?adminId="+s.adminID, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	challenge := decodeBase64Field(s.T(), body, "challenge")
	response := testCreds.DeriveResponse(s.adminSecret, challenge)

	resp, body = s.request(http.MethodPost, "/admin/login/response?adminId="+s.adminID, map[string]any{
		"response": response,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	return body["sessionId"].(string)
}

func decodeBase64Field(t *testing.T, body map[string]any, field string) []byte {
	t.Helper()
	encoded, ok := body[field].(string)
	if !ok {
		t.Fatalf("missing %s field", field)
	}
	out, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func (s *RouterSuite) TestAdminFlow() {
	sessionID := s.adminLogin()

	resp, _ := s.request(http.MethodPost, "/admin/renew?sessionId="+sessionID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	_, entries := s.requestList(http.MethodGet, "/admin/auditlog?sessionId="+sessionID)
	s.Require().NotEmpty(entries)
	s.Equal("Login.Success", entries[0].(map[string]any)["action"])

	resp, _ = s.request(http.MethodPost, "/admin/logout?sessionId="+sessionID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	// Logged out admins can start a fresh cycle.
	second := s.adminLogin()
	s.NotEqual(sessionID, second)
}

func (s *RouterSuite) TestAdminWrongResponse() {
	resp, _ := s.request(http.MethodGet, "/admin/login/challenge?adminId="+s.adminID, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, body := s.request(http.MethodPost, fmt.Sprintf("/admin/login/response?adminId=%s", s.adminID), map[string]any{
		"response": []byte("not the answer"),
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("IncorrectResponse", body["error"])
	s.Equal(realmAdmin, resp.Header.Get("WWW-Authenticate"))
}
