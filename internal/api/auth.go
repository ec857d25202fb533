package api

import (
	"context"
	"net/http"
)

// Preferences are the user's assistant preferences as stored server-side.
type Preferences struct {
	Theme      string  `json:"theme,omitempty"`
	WakeWord   string  `json:"wake_word,omitempty"`
	VoiceType  string  `json:"voice_type,omitempty"`
	VoiceSpeed float64 `json:"voice_speed,omitempty"`
}

// User is the authenticated account profile.
type User struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	IsAdmin     bool        `json:"isAdmin"`
	Preferences Preferences `json:"preferences"`
}

type authEnvelope struct {
	Data struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a bearer token and attaches it to the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (string, User, error) {
	body := map[string]string{"username": username, "password": password}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return "", User{}, err
	}
	var env authEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return "", User{}, err
	}
	c.token = env.Data.Token
	return env.Data.Token, env.Data.User, nil
}

// Register creates an account and returns its bearer token, attached to the
// client like Login.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	resp, err := c.do(ctx, http.MethodPost, "/auth/register", body)
	if err != nil {
		return "", User{}, err
	}
	var env authEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return "", User{}, err
	}
	c.token = env.Data.Token
	return env.Data.Token, env.Data.User, nil
}

type profileEnvelope struct {
	Data User `json:"data"`
}

// Profile fetches the account behind the configured token.
func (c *Client) Profile(ctx context.Context) (User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/profile", nil)
	if err != nil {
		return User{}, err
	}
	var env profileEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

type preferencesEnvelope struct {
	Data Preferences `json:"data"`
}

// UpdatePreferences stores new assistant preferences and returns the
// server's view of them.
func (c *Client) UpdatePreferences(ctx context.Context, prefs Preferences) (Preferences, error) {
	resp, err := c.do(ctx, http.MethodPut, "/auth/preferences", prefs)
	if err != nil {
		return Preferences{}, err
	}
	var env preferencesEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return Preferences{}, err
	}
	return env.Data, nil
}
