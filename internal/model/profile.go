package model

// Profile holds the public details a user shows about themself.
// Avatar follows the same media-path convention as Post.Image.
type Profile struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"userId"`
	Bio     string `json:"bio"`
	Website string `json:"website"`
	Avatar  string `json:"avatar,omitempty"`
}

// Theme is the colour scheme a user prefers.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DefaultTheme is used for anonymous visitors and users without settings.
const DefaultTheme = ThemeLight

// Themes lists the accepted values in display order.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeSystem}

// Label is the human name shown on the settings form.
func (t Theme) Label() string {
	switch t {
	case ThemeDark:
		return "Dark"
	case ThemeSystem:
		return "System default"
	default:
		return "Light"
	}
}

// Valid reports whether t is one of Themes.
func (t Theme) Valid() bool {
	for _, v := range Themes {
		if t == v {
			return true
		}
	}
	return false
}

// Settings are per-user display preferences.
type Settings struct {
	ID                   int64 `json:"id"`
	UserID               int64 `json:"userId"`
	Theme                Theme `json:"theme"`
	NotificationsEnabled bool  `json:"notificationsEnabled"`
}

// DefaultSettings returns the preferences a new settings row starts with.
func DefaultSettings(userID int64) *Settings {
	return &Settings{
		UserID:               userID,
		Theme:                DefaultTheme,
		NotificationsEnabled: true,
	}
}
