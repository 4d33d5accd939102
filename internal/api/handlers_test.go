package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"palaver/internal/models"
)

type fakeHub struct {
	rooms  []models.RoomInfo
	online []string
}

func (f *fakeHub) Rooms() []models.RoomInfo { return f.rooms }
func (f *fakeHub) Online() []string         { return f.online }
func (f *fakeHub) IsOnline(name string) bool {
	for _, n := range f.online {
		if n == name {
			return true
		}
	}
	return false
}

type fakeSubs struct {
	saved map[string][]byte
	err   error
}

func (f *fakeSubs) SaveSubscription(name string, subscription []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[name] = subscription
	return nil
}

func newTestAPI(hub Coordinator, subs SubscriptionStore) *API {
	return New(hub, subs, zerolog.Nop())
}

func TestRoomsHandler(t *testing.T) {
	hub := &fakeHub{rooms: []models.RoomInfo{
		{Name: "general", Creator: "System"},
		{Name: "random", Creator: "alice"},
	}}
	a := newTestAPI(hub, nil)

	rec := httptest.NewRecorder()
	a.RoomsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rooms []models.RoomInfo
	if err := json.NewDecoder(rec.Body).Decode(&rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 || rooms[1].Creator != "alice" {
		t.Errorf("unexpected room list: %+v", rooms)
	}
}

func TestPresenceHandler(t *testing.T) {
	a := newTestAPI(&fakeHub{online: []string{"alice", "bob"}}, nil)

	rec := httptest.NewRecorder()
	a.PresenceHandler(rec, httptest.NewRequest(http.MethodGet, "/api/presence", nil))

	var names []string
	if err := json.NewDecoder(rec.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alice" {
		t.Errorf("unexpected presence list: %v", names)
	}
}

func TestSubscribeHandler(t *testing.T) {
	hub := &fakeHub{online: []string{"alice"}}

	cases := []struct {
		name   string
		subs   SubscriptionStore
		body   string
		status int
	}{
		{"ok", &fakeSubs{}, `{"name":"alice","subscription":{"endpoint":"https://push.example"}}`, http.StatusOK},
		{"bad body", &fakeSubs{}, `{not json`, http.StatusBadRequest},
		{"invalid name", &fakeSubs{}, `{"name":"has space","subscription":{}}`, http.StatusBadRequest},
		{"offline identity", &fakeSubs{}, `{"name":"bob","subscription":{"endpoint":"x"}}`, http.StatusNotFound},
		{"missing subscription", &fakeSubs{}, `{"name":"alice"}`, http.StatusBadRequest},
		{"push not configured", nil, `{"name":"alice","subscription":{"endpoint":"x"}}`, http.StatusServiceUnavailable},
		{"store failure", &fakeSubs{err: errors.New("disk full")}, `{"name":"alice","subscription":{"endpoint":"x"}}`, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAPI(hub, tc.subs)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(tc.body))
			a.SubscribeHandler(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	// The stored blob is the subscription object verbatim.
	subs := &fakeSubs{}
	a := newTestAPI(hub, subs)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe",
		strings.NewReader(`{"name":"alice","subscription":{"endpoint":"https://push.example"}}`))
	a.SubscribeHandler(rec, req)
	if got := string(subs.saved["alice"]); got != `{"endpoint":"https://push.example"}` {
		t.Errorf("unexpected stored blob: %s", got)
	}
}

func TestHealthHandler(t *testing.T) {
	a := newTestAPI(&fakeHub{}, nil)

	rec := httptest.NewRecorder()
	a.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}
