package domain

// GatewayIndex is the data of /gateway/index.
type GatewayIndex struct {
	URL string `json:"url"`
}

// Guild is an item of /guild/list.
type Guild struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Topic            string `json:"topic"`
	MasterID         string `json:"master_id"`
	Icon             string `json:"icon"`
	NotifyType       int    `json:"notify_type"`
	Region           string `json:"region"`
	EnableOpen       bool   `json:"enable_open"`
	OpenID           string `json:"open_id"`
	DefaultChannelID string `json:"default_channel_id"`
	WelcomeChannelID string `json:"welcome_channel_id"`
	BoostNum         int    `json:"boost_num"`
	Level            int    `json:"level"`
}

// GuildView is the data of /guild/view.
type GuildView struct {
	Guild
	Roles    []GuildRole    `json:"roles"`
	Channels []GuildChannel `json:"channels"`
}

// GuildRole is a role definition within a guild.
type GuildRole struct {
	RoleID      int    `json:"role_id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Hoist       int    `json:"hoist"`
	Mentionable int    `json:"mentionable"`
	Permissions int    `json:"permissions"`
}

// GuildChannel is a channel summary within a guild.
type GuildChannel struct {
	ID         string `json:"id"`
	GuildID    string `json:"guild_id"`
	MasterID   string `json:"master_id"`
	ParentID   string `json:"parent_id"`
	Name       string `json:"name"`
	Topic      string `json:"topic"`
	Type       int    `json:"type"`
	Level      int    `json:"level"`
	SlowMode   int    `json:"slow_mode"`
	IsCategory bool   `json:"is_category"`
}

// GuildUser is an item of /guild/user-list.
type GuildUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	IdentifyNum string `json:"identify_num"`
	Online      bool   `json:"online"`
	Status      int    `json:"status"`
	Bot         bool   `json:"bot"`
	Avatar      string `json:"avatar"`
	VIPAvatar   string `json:"vip_avatar"`
	Nickname    string `json:"nickname"`
	Roles       []int  `json:"roles"`
}

// GuildMuteList is the data of /guild-mute/list with return_type=detail.
type GuildMuteList struct {
	Mic     GuildMuteGroup `json:"mic"`
	Headset GuildMuteGroup `json:"headset"`
}

// GuildMuteGroup lists users under one mute type.
type GuildMuteGroup struct {
	Type    MuteType `json:"type"`
	UserIDs []string `json:"user_ids"`
}

// MuteType selects microphone or headset muting.
type MuteType int

const (
	MuteMic     MuteType = 1
	MuteHeadset MuteType = 2
)

// GuildMuteSetting is the body of /guild-mute/create and /guild-mute/delete.
type GuildMuteSetting struct {
	GuildID string   `json:"guild_id"`
	UserID  string   `json:"user_id"`
	Type    MuteType `json:"type"`
}

// GuildNicknameSetting is the body of /guild/nickname. Empty Nickname resets
// the nickname; empty UserID targets the calling user.
type GuildNicknameSetting struct {
	GuildID  string `json:"guild_id"`
	Nickname string `json:"nickname,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}
