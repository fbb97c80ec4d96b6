package rest

import (
	"context"
	"strconv"

	"kaiheila/internal/domain"
)

// GuildUserListSetting filters /guild/user-list. Nil fields are not sent.
type GuildUserListSetting struct {
	GuildID        string
	ChannelID      *string
	Search         *string
	RoleID         *int
	MobileVerified *bool // only users with (1) or without (0) a verified phone
	ActiveTime     *bool // sort by last activity, descending when true
	JoinedAt       *bool // sort by join time, descending when true
	FilterUserID   *string
}

// Params renders the setting as query pairs in a stable order.
func (s GuildUserListSetting) Params() Params {
	p := Params{{Key: "guild_id", Value: s.GuildID}}
	if s.ChannelID != nil {
		p = p.Add("channel_id", *s.ChannelID)
	}
	if s.Search != nil {
		p = p.Add("search", *s.Search)
	}
	if s.RoleID != nil {
		p = p.Add("role_id", strconv.Itoa(*s.RoleID))
	}
	if s.MobileVerified != nil {
		p = p.Add("mobile_verified", boolParam(*s.MobileVerified))
	}
	if s.ActiveTime != nil {
		p = p.Add("active_time", boolParam(*s.ActiveTime))
	}
	if s.JoinedAt != nil {
		p = p.Add("joined_at", boolParam(*s.JoinedAt))
	}
	if s.FilterUserID != nil {
		p = p.Add("filter_user_id", *s.FilterUserID)
	}
	return p
}

// Guilds lists the guilds the caller has joined.
func (c *Client) Guilds() *Pager[domain.Guild] {
	return NewPager[domain.Guild](c, "/guild/list", nil)
}

// GuildView returns details of one guild including roles and channels.
func (c *Client) GuildView(ctx context.Context, guildID string) (domain.GuildView, error) {
	return Execute[domain.GuildView](ctx, c, Request{
		Path:  "/guild/view",
		Query: Params{{Key: "guild_id", Value: guildID}},
	})
}

// GuildUsers lists the members of a guild.
func (c *Client) GuildUsers(setting GuildUserListSetting) *Pager[domain.GuildUser] {
	return NewPager[domain.GuildUser](c, "/guild/user-list", setting.Params())
}

// GuildNickname sets or resets a nickname in a guild.
func (c *Client) GuildNickname(ctx context.Context, setting domain.GuildNicknameSetting) error {
	return postJSON(ctx, c, "/guild/nickname", setting)
}

// GuildLeave makes the caller leave a guild.
func (c *Client) GuildLeave(ctx context.Context, guildID string) error {
	return postJSON(ctx, c, "/guild/leave", map[string]string{"guild_id": guildID})
}

// GuildKickout removes targetID from a guild.
func (c *Client) GuildKickout(ctx context.Context, guildID, targetID string) error {
	return postJSON(ctx, c, "/guild/kickout", map[string]string{
		"guild_id":  guildID,
		"target_id": targetID,
	})
}

// GuildMuteList returns the muted users of a guild grouped by mute type.
func (c *Client) GuildMuteList(ctx context.Context, guildID string) (domain.GuildMuteList, error) {
	return Execute[domain.GuildMuteList](ctx, c, Request{
		Path: "/guild-mute/list",
		Query: Params{
			{Key: "return_type", Value: "detail"},
			{Key: "guild_id", Value: guildID},
		},
	})
}

// GuildMuteCreate mutes a user's microphone or headset.
func (c *Client) GuildMuteCreate(ctx context.Context, setting domain.GuildMuteSetting) error {
	return postJSON(ctx, c, "/guild-mute/create", setting)
}

// GuildMuteDelete lifts a mute.
func (c *Client) GuildMuteDelete(ctx context.Context, setting domain.GuildMuteSetting) error {
	return postJSON(ctx, c, "/guild-mute/delete", setting)
}
