package acceptance

import (
	"context"
	"net/http"

	"github.com/chatterhq/identity-service/internal/dto"
	"github.com/chatterhq/identity-service/internal/repository"
)

func (s *Suite) TestGuest_FirstMessageCreatesSession() {
	client := s.newClient()

	resp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{
		Content: "hello there",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var verdict dto.GuestMessageResponse
	s.decode(resp, &verdict)

	s.NotEmpty(verdict.GuestID)
	s.True(verdict.Allowed)
	s.Equal(2, verdict.Remaining)

	s.guestCookieSet(resp)
}

func (s *Suite) TestGuest_QuotaEnforced() {
	client := s.newClient()

	var guestID string
	for i := 0; i < 3; i++ {
		resp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{
			Content: "message",
		})
		s.Equal(http.StatusOK, resp.StatusCode)

		var verdict dto.GuestMessageResponse
		s.decode(resp, &verdict)
		resp.Body.Close()

		s.True(verdict.Allowed)
		s.Equal(2-i, verdict.Remaining)

		if guestID == "" {
			guestID = verdict.GuestID
		} else {
			// The cookie keeps the guest stable across messages.
			s.Equal(guestID, verdict.GuestID)
		}
	}

	// Over quota: 403 with the verdict, repeatable without side effects.
	for i := 0; i < 2; i++ {
		resp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{
			Content: "one more",
		})
		s.Equal(http.StatusForbidden, resp.StatusCode)

		var verdict dto.GuestMessageResponse
		s.decode(resp, &verdict)
		resp.Body.Close()

		s.False(verdict.Allowed)
		s.Equal(0, verdict.Remaining)
		s.Equal(guestID, verdict.GuestID)
	}
}

func (s *Suite) TestGuest_UnknownCookieGetsFreshSession() {
	client := s.newClient()

	resp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{Content: "hi"})
	var first dto.GuestMessageResponse
	s.decode(resp, &first)
	resp.Body.Close()

	// Wipe the guest server-side; the stale cookie must not error.
	_, err := s.Postgres.DB.Exec(`DELETE FROM anonymous_sessions WHERE id = $1`, first.GuestID)
	s.Require().NoError(err)

	resp = s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{Content: "hi again"})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var second dto.GuestMessageResponse
	s.decode(resp, &second)
	s.NotEqual(first.GuestID, second.GuestID)
	s.Equal(2, second.Remaining)
}

func (s *Suite) TestGuest_MigratedOnRegistration() {
	client := s.newClient()

	// Build up a guest conversation.
	for _, content := range []string{"first question", "second question"} {
		resp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{Content: content})
		s.Equal(http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	// Registration with the guest cookie present migrates the transcript.
	resp := s.postJSON(client, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "convert@example.com",
		Password: "Password123",
	})
	resp.Body.Close()
	s.Equal(http.StatusCreated, resp.StatusCode)

	var chatSessions, chatMessages, guests int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM chat_sessions`).Scan(&chatSessions))
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM chat_messages`).Scan(&chatMessages))
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM anonymous_sessions`).Scan(&guests))

	s.Equal(1, chatSessions)
	s.Equal(2, chatMessages)
	s.Equal(0, guests, "guest session should be consumed by migration")
}

func (s *Suite) TestGuest_ExplicitMigrationIsIdempotent() {
	guestClient := s.newClient()

	transcript := []string{"save me", "and this one", "this one too"}
	var verdict dto.GuestMessageResponse
	for _, content := range transcript {
		resp := s.postJSON(guestClient, "/api/v1/guest/messages", dto.GuestMessageRequest{Content: content})
		s.Equal(http.StatusOK, resp.StatusCode)
		s.decode(resp, &verdict)
		resp.Body.Close()
	}

	// Sign up on a different client, so no guest cookie rides along.
	userClient := s.newClient()
	resp := s.postJSON(userClient, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "migrator@example.com",
		Password: "Password123",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	var auth dto.AuthResponse
	s.decode(resp, &auth)
	resp.Body.Close()

	migrateResp := s.postJSON(userClient, "/api/v1/auth/migrate-guest-session", dto.MigrateRequest{
		GuestID: verdict.GuestID,
	})
	defer migrateResp.Body.Close()
	s.Equal(http.StatusOK, migrateResp.StatusCode)

	var result dto.MigrateResponse
	s.decode(migrateResp, &result)
	s.True(result.Migrated)
	s.NotEmpty(result.ChatSessionID)
	s.Equal(len(transcript), result.MigratedMessages)

	// The stored transcript belongs to the new user and keeps the
	// original message order.
	chats := repository.NewChatRepository(s.Postgres)
	chatSession, err := chats.GetSession(context.Background(), result.ChatSessionID)
	s.Require().NoError(err)
	s.Equal(auth.User.ID, chatSession.UserID)

	messages, err := chats.ListMessages(context.Background(), result.ChatSessionID)
	s.Require().NoError(err)
	s.Require().Len(messages, len(transcript))
	for i, content := range transcript {
		s.Equal(content, messages[i].Content)
		s.Equal("user", messages[i].Role)
	}

	// A second migration of the same guest finds nothing and succeeds.
	repeatResp := s.postJSON(userClient, "/api/v1/auth/migrate-guest-session", dto.MigrateRequest{
		GuestID: verdict.GuestID,
	})
	defer repeatResp.Body.Close()
	s.Equal(http.StatusOK, repeatResp.StatusCode)

	var repeat dto.MigrateResponse
	s.decode(repeatResp, &repeat)
	s.False(repeat.Migrated)
	s.Empty(repeat.ChatSessionID)
}

func (s *Suite) TestGuest_AuthenticatedUsersRejected() {
	client := s.newClient()

	resp := s.postJSON(client, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    "member@example.com",
		Password: "Password123",
	})
	resp.Body.Close()
	s.Equal(http.StatusCreated, resp.StatusCode)

	guestResp := s.postJSON(client, "/api/v1/guest/messages", dto.GuestMessageRequest{Content: "hi"})
	defer guestResp.Body.Close()
	s.Equal(http.StatusBadRequest, guestResp.StatusCode)
}

// guestCookieSet asserts the response set the guest cookie
func (s *Suite) guestCookieSet(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "guest_id" && cookie.Value != "" {
			return
		}
	}
	s.Fail("guest_id cookie not set")
}
