// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "encoding/json"

// DefaultAvatar is the glyph given to self-registered users.
const DefaultAvatar = "👤"

// UserProfile is a locally registered account. The password is kept in
// plain text; this client has no trust boundary to protect it behind.
type UserProfile struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Password string `json:"password,omitempty"`
}

// Initial returns the glyph used when rendering the user, falling back to
// the first letter of the display name.
func (u UserProfile) Initial() string {
	if u.Avatar != "" {
		return u.Avatar
	}
	for _, r := range u.Name {
		return string(r)
	}
	return "?"
}

// EncodeUsers serializes the credential collection.
func EncodeUsers(users []UserProfile) ([]byte, error) {
	if users == nil {
		users = []UserProfile{}
	}
	return json.Marshal(users)
}

// DecodeUsers parses the credential collection.
func DecodeUsers(data []byte) ([]UserProfile, error) {
	var users []UserProfile
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// EncodeUser serializes a single profile (the active-user pointer).
func EncodeUser(u UserProfile) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUser parses a single profile.
func DecodeUser(data []byte) (UserProfile, error) {
	var u UserProfile
	err := json.Unmarshal(data, &u)
	return u, err
}
