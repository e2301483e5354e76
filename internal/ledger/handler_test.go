package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	service  *Service
	router   chi.Router
	userID   id.UserID
	role     string
	internal bool
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = NewService(NewInMemoryStore(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.userID = id.NewUserID()
	s.role = "citizen"
	s.internal = false

	h := NewHandler(s.service, s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithClientMetadata(req.Context(), "10.0.0.1", req.UserAgent())
			if s.internal {
				ctx = requestcontext.WithInternalCaller(ctx)
			} else {
				ctx = requestcontext.WithUserID(ctx, s.userID)
				ctx = requestcontext.WithRole(ctx, s.role)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	h.RegisterAppend(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, []byte) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func (s *HandlerSuite) assertStatusAndError(rec *httptest.ResponseRecorder, raw []byte, status int, code string) {
	s.Equal(status, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal(code, body["error"])
}

func (s *HandlerSuite) seed(actor string, n int) {
	for range n {
		_, err := s.service.Append(context.Background(), &Entry{Actor: actor, ActorRole: "citizen", ActionType: "GRANT_CONSENT"})
		s.Require().NoError(err)
	}
}

func (s *HandlerSuite) TestGetLedger() {
	s.seed("someone", 3)

	s.Run("admin sees all entries with limit", func() {
		s.role = "admin"
		rec, raw := s.do(http.MethodGet, "/getLedger?limit=2", "")
		s.Equal(http.StatusOK, rec.Code)
		var entries []map[string]any
		s.Require().NoError(json.Unmarshal(raw, &entries))
		s.Len(entries, 2)
	})

	s.Run("bad limit", func() {
		s.role = "admin"
		rec, raw := s.do(http.MethodGet, "/getLedger?limit=abc", "")
		s.assertStatusAndError(rec, raw, http.StatusBadRequest, "bad_request")
	})

	s.Run("citizen is forbidden", func() {
		s.role = "citizen"
		rec, raw := s.do(http.MethodGet, "/getLedger", "")
		s.assertStatusAndError(rec, raw, http.StatusForbidden, "forbidden")
	})
}

func (s *HandlerSuite) TestUserLedger() {
	s.seed(s.userID.String(), 2)
	s.seed("other", 1)

	s.Run("self", func() {
		s.role = "citizen"
		rec, raw := s.do(http.MethodGet, "/users/"+s.userID.String()+"/ledger", "")
		s.Equal(http.StatusOK, rec.Code)
		var entries []map[string]any
		s.Require().NoError(json.Unmarshal(raw, &entries))
		s.Len(entries, 2)
	})

	s.Run("citizen reading another user", func() {
		s.role = "citizen"
		rec, raw := s.do(http.MethodGet, "/users/other/ledger", "")
		s.assertStatusAndError(rec, raw, http.StatusForbidden, "forbidden")
	})

	s.Run("business may read another user", func() {
		s.role = "business"
		rec, raw := s.do(http.MethodGet, "/users/other/ledger", "")
		s.Equal(http.StatusOK, rec.Code)
		var entries []map[string]any
		s.Require().NoError(json.Unmarshal(raw, &entries))
		s.Len(entries, 1)
	})
}

func (s *HandlerSuite) TestAppend() {
	s.Run("admin append stamps actor and client metadata", func() {
		s.role = "admin"
		rec, raw := s.do(http.MethodPost, "/ledger/append",
			`{"actionType":"MANUAL_NOTE","actor":"forged","raw":{"note":"checked"}}`)
		s.Equal(http.StatusCreated, rec.Code)

		var body map[string]any
		s.Require().NoError(json.Unmarshal(raw, &body))
		s.Equal(s.userID.String(), body["actor"])
		s.Equal("admin", body["actorRole"])
		rawField := body["raw"].(map[string]any)
		s.Equal("checked", rawField["note"])
		client := rawField["client"].(map[string]any)
		s.Equal("chrome", client["browser"])
		s.Contains(client["os"], "windows")
	})

	s.Run("internal caller", func() {
		s.internal = true
		defer func() { s.internal = false }()
		rec, raw := s.do(http.MethodPost, "/ledger/append", `{"actionType":"ENGINE_NOTE"}`)
		s.Equal(http.StatusCreated, rec.Code)
		var body map[string]any
		s.Require().NoError(json.Unmarshal(raw, &body))
		s.Equal(ActorInternal, body["actor"])
	})

	s.Run("missing action type", func() {
		s.role = "admin"
		rec, raw := s.do(http.MethodPost, "/ledger/append", `{"raw":{}}`)
		s.assertStatusAndError(rec, raw, http.StatusBadRequest, "validation_error")
	})

	s.Run("bad action ref", func() {
		s.role = "admin"
		rec, raw := s.do(http.MethodPost, "/ledger/append", `{"actionType":"X","actionRef":"nope"}`)
		s.assertStatusAndError(rec, raw, http.StatusBadRequest, "validation_error")
	})
}
