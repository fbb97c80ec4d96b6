package rest

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaiheila/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestGuildUserListSettingParams(t *testing.T) {
	tests := []struct {
		name    string
		setting GuildUserListSetting
		want    string
	}{
		{"guild only", GuildUserListSetting{GuildID: "g"}, "guild_id=g"},
		{"all fields", GuildUserListSetting{
			GuildID:        "g",
			ChannelID:      ptr("c"),
			Search:         ptr("nick name"),
			RoleID:         ptr(7),
			MobileVerified: ptr(true),
			ActiveTime:     ptr(false),
			JoinedAt:       ptr(true),
			FilterUserID:   ptr("u"),
		}, "guild_id=g&channel_id=c&search=nick+name&role_id=7&mobile_verified=1&active_time=0&joined_at=1&filter_user_id=u"},
		{"joined_at false", GuildUserListSetting{GuildID: "g", JoinedAt: ptr(false)}, "guild_id=g&joined_at=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.setting.Params().Encode())
		})
	}
}

// endpointServer answers every request with data and records the last request.
type endpointServer struct {
	t    *testing.T
	data any

	mu     sync.Mutex
	method string
	path   string
	query  string
	body   string
}

func (s *endpointServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.method, s.path, s.query, s.body = r.Method, r.URL.Path, r.URL.RawQuery, string(b)
	s.mu.Unlock()
	writeEnvelope(s.t, w, s.data)
}

// last returns the method, path, query and body of the last request.
func (s *endpointServer) last() (method, path, query, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method, s.path, s.query, s.body
}

func TestGuildReadEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("view", func(t *testing.T) {
		srv := &endpointServer{t: t, data: map[string]any{
			"id": "g", "name": "Guild", "roles": []map[string]any{{"role_id": 1, "name": "@everyone"}},
			"channels": []map[string]any{{"id": "c", "name": "general", "is_category": false}},
		}}
		c, _ := newTestClient(t, srv)

		view, err := c.GuildView(ctx, "g")
		require.NoError(t, err)
		_, path, query, _ := srv.last()
		assert.Equal(t, "/api/v3/guild/view", path)
		assert.Equal(t, "compress=1&guild_id=g", query)
		assert.Equal(t, "Guild", view.Name)
		require.Len(t, view.Roles, 1)
		assert.Equal(t, "@everyone", view.Roles[0].Name)
		require.Len(t, view.Channels, 1)
		assert.Equal(t, "general", view.Channels[0].Name)
	})

	t.Run("mute list", func(t *testing.T) {
		srv := &endpointServer{t: t, data: map[string]any{
			"mic":     map[string]any{"type": 1, "user_ids": []string{"u1"}},
			"headset": map[string]any{"type": 2, "user_ids": []string{"u2", "u3"}},
		}}
		c, _ := newTestClient(t, srv)

		mutes, err := c.GuildMuteList(ctx, "g")
		require.NoError(t, err)
		_, path, query, _ := srv.last()
		assert.Equal(t, "/api/v3/guild-mute/list", path)
		assert.Equal(t, "compress=1&return_type=detail&guild_id=g", query)
		assert.Equal(t, domain.GuildMuteList{
			Mic:     domain.GuildMuteGroup{Type: domain.MuteMic, UserIDs: []string{"u1"}},
			Headset: domain.GuildMuteGroup{Type: domain.MuteHeadset, UserIDs: []string{"u2", "u3"}},
		}, mutes)
	})

	t.Run("guilds", func(t *testing.T) {
		srv := &endpointServer{t: t, data: map[string]any{
			"items": []map[string]any{{"id": "g1"}, {"id": "g2"}},
			"meta":  map[string]int{"page": 1, "page_total": 1, "page_size": 50, "total": 2},
			"sort":  []any{},
		}}
		c, _ := newTestClient(t, srv)

		guilds, err := c.Guilds().Collect(ctx)
		require.NoError(t, err)
		_, path, _, _ := srv.last()
		assert.Equal(t, "/api/v3/guild/list", path)
		require.Len(t, guilds, 2)
		assert.Equal(t, "g2", guilds[1].ID)
	})

	t.Run("users", func(t *testing.T) {
		srv := &endpointServer{t: t, data: map[string]any{
			"items": []map[string]any{{"id": "u1", "username": "alice", "roles": []int{1, 2}}},
			"meta":  map[string]int{"page": 1, "page_total": 1, "page_size": 50, "total": 1},
		}}
		c, _ := newTestClient(t, srv)

		users, err := c.GuildUsers(GuildUserListSetting{GuildID: "g", Search: ptr("al")}).Collect(ctx)
		require.NoError(t, err)
		_, path, query, _ := srv.last()
		assert.Equal(t, "/api/v3/guild/user-list", path)
		assert.Equal(t, "compress=1&guild_id=g&search=al", query)
		require.Len(t, users, 1)
		assert.Equal(t, []int{1, 2}, users[0].Roles)
	})
}

func TestGuildWriteEndpoints(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(*Client) error
		path string
		body string
	}{
		{"nickname", func(c *Client) error {
			return c.GuildNickname(ctx, domain.GuildNicknameSetting{GuildID: "g", Nickname: "nick"})
		}, "/api/v3/guild/nickname", `{"guild_id":"g","nickname":"nick"}`},
		{"leave", func(c *Client) error { return c.GuildLeave(ctx, "g") }, "/api/v3/guild/leave", `{"guild_id":"g"}`},
		{"kickout", func(c *Client) error { return c.GuildKickout(ctx, "g", "u") }, "/api/v3/guild/kickout", `{"guild_id":"g","target_id":"u"}`},
		{"mute create", func(c *Client) error {
			return c.GuildMuteCreate(ctx, domain.GuildMuteSetting{GuildID: "g", UserID: "u", Type: domain.MuteMic})
		}, "/api/v3/guild-mute/create", `{"guild_id":"g","user_id":"u","type":1}`},
		{"mute delete", func(c *Client) error {
			return c.GuildMuteDelete(ctx, domain.GuildMuteSetting{GuildID: "g", UserID: "u", Type: domain.MuteHeadset})
		}, "/api/v3/guild-mute/delete", `{"guild_id":"g","user_id":"u","type":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &endpointServer{t: t, data: []any{}}
			c, _ := newTestClient(t, srv)

			require.NoError(t, tt.call(c))
			method, path, _, body := srv.last()
			assert.Equal(t, http.MethodPost, method)
			assert.Equal(t, tt.path, path)
			assert.JSONEq(t, tt.body, body)
		})
	}
}

func TestGuildWriteEndpointCodeNotZero(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40000,"message":"no permission","data":[]}`))
	}))
	err := c.GuildKickout(context.Background(), "g", "u")
	assert.ErrorIs(t, err, domain.ErrCodeNotZero)
	assert.Equal(t, domain.CodeCodeNotZero, domain.ErrorCodeOf(err))
}
