// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package redis

import (
	"fmt"
	"strings"
)

// Key prefix for all identity data.
const keyPrefix = "emberfall"

// recordKey returns the Redis key for a player record.
func recordKey(uuid string) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, uuid)
}

// usernameIndexKey returns the Redis key for the username -> uuid index.
// Usernames are lowercased so lookups are case-insensitive.
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, strings.ToLower(username))
}
