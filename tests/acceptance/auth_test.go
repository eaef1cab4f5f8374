package acceptance

import (
	"net/http"

	"github.com/chatterhq/identity-service/internal/dto"
)

func (s *Suite) TestRegister_Success() {
	client := s.newClient()

	resp := s.postJSON(client, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "test@example.com",
		Password: "Password123",
		Name:     "Test User",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusCreated, resp.StatusCode)

	var authResp dto.AuthResponse
	s.decode(resp, &authResp)

	s.Equal("test@example.com", authResp.User.Email)
	s.Equal("Test User", authResp.User.Name)
	s.NotEmpty(authResp.User.ID)

	s.sessionCookieSet(resp)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	client := s.newClient()

	resp1 := s.postJSON(client, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "duplicate@example.com",
		Password: "Password123",
	})
	resp1.Body.Close()
	s.Equal(http.StatusCreated, resp1.StatusCode)

	resp2 := s.postJSON(s.newClient(), "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "duplicate@example.com",
		Password: "Password456",
	})
	defer resp2.Body.Close()

	s.Equal(http.StatusConflict, resp2.StatusCode)

	var errResp dto.ErrorResponse
	s.decode(resp2, &errResp)
	s.Equal("Conflict", errResp.Error)
}

func (s *Suite) TestRegister_InvalidInput() {
	cases := []dto.RegisterRequest{
		{Email: "invalid-email", Password: "Password123"},
		{Email: "test@example.com", Password: "short1A"},
		{Email: "test@example.com", Password: "alllowercase123"},
	}

	for _, req := range cases {
		resp := s.postJSON(s.newClient(), "/api/v1/auth/register", req)
		s.Equal(http.StatusBadRequest, resp.StatusCode, "email=%s password=%s", req.Email, req.Password)
		resp.Body.Close()
	}
}

func (s *Suite) TestLogin_Success() {
	s.register("login@example.com", "Password123")

	client := s.newClient()
	resp := s.postJSON(client, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "login@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.sessionCookieSet(resp)

	meResp := s.get(client, "/api/v1/auth/me")
	defer meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)

	var me dto.UserResponse
	s.decode(meResp, &me)
	s.Equal("login@example.com", me.Email)
	s.NotNil(me.LastLoginAt)
}

func (s *Suite) TestLogin_WrongPassword() {
	s.register("login@example.com", "Password123")

	resp := s.postJSON(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{
		Email:    "login@example.com",
		Password: "WrongPassword1",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_UnknownEmailIndistinguishable() {
	resp := s.postJSON(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{
		Email:    "nobody@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_LockoutAfterRepeatedFailures() {
	s.register("victim@example.com", "Password123")

	// LoginMaxFailures is 3 in the test config; the third failure locks.
	for i := 0; i < 2; i++ {
		resp := s.postJSON(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{
			Email:    "victim@example.com",
			Password: "WrongPassword1",
		})
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	locking := s.postJSON(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{
		Email:    "victim@example.com",
		Password: "WrongPassword1",
	})
	s.Equal(http.StatusLocked, locking.StatusCode)
	locking.Body.Close()

	// Even the correct password is refused while locked.
	resp := s.postJSON(s.newClient(), "/api/v1/auth/login", dto.LoginRequest{
		Email:    "victim@example.com",
		Password: "Password123",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusLocked, resp.StatusCode)
}

func (s *Suite) TestSingleSession_SecondLoginEvictsFirst() {
	s.register("single@example.com", "Password123")

	first := s.newClient()
	resp := s.postJSON(first, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "single@example.com",
		Password: "Password123",
	})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	second := s.newClient()
	resp = s.postJSON(second, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "single@example.com",
		Password: "Password123",
	})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// The second login superseded the first device's session.
	firstMe := s.get(first, "/api/v1/auth/me")
	defer firstMe.Body.Close()
	s.Equal(http.StatusUnauthorized, firstMe.StatusCode)

	secondMe := s.get(second, "/api/v1/auth/me")
	defer secondMe.Body.Close()
	s.Equal(http.StatusOK, secondMe.StatusCode)
}

func (s *Suite) TestLogout() {
	client := s.newClient()
	resp := s.postJSON(client, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "logout@example.com",
		Password: "Password123",
	})
	resp.Body.Close()
	s.Equal(http.StatusCreated, resp.StatusCode)

	logoutResp := s.postJSON(client, "/api/v1/auth/logout", struct{}{})
	defer logoutResp.Body.Close()
	s.Equal(http.StatusOK, logoutResp.StatusCode)

	meResp := s.get(client, "/api/v1/auth/me")
	defer meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)
}

func (s *Suite) TestMe_RequiresAuthentication() {
	resp := s.get(s.newClient(), "/api/v1/auth/me")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestOAuth_UnknownProvider() {
	client := s.newClient()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp := s.get(client, "/api/v1/auth/oauth/myspace/start")
	defer resp.Body.Close()

	// No providers are configured in the test environment.
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

// register creates a user through the API with a throwaway client
func (s *Suite) register(email, password string) {
	resp := s.postJSON(s.newClient(), "/api/v1/auth/register", dto.RegisterRequest{
		Email:    email,
		Password: password,
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
}

// sessionCookieSet asserts the response set the session cookie
func (s *Suite) sessionCookieSet(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session_token" && cookie.Value != "" {
			s.True(cookie.HttpOnly, "session cookie must be HttpOnly")
			return
		}
	}
	s.Fail("session_token cookie not set")
}
