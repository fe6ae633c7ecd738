// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package identity

import "github.com/samber/oops"

// GameObject is one in-scene entity owned by a player. Name identifies the
// spawnable prototype and need not be unique; UUID identifies the instance
// and must be unique within the owning player's collection. The collection
// is session-scoped: it is cleared when the last session ends and is never
// persisted.
type GameObject struct {
	Name string  `json:"name"`
	UUID string  `json:"uuid"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Validate checks that the object carries an identity.
func (o GameObject) Validate() error {
	if o.Name == "" {
		return oops.Code("OBJECT_INVALID").Errorf("object name cannot be empty")
	}
	if o.UUID == "" {
		return oops.Code("OBJECT_INVALID").With("name", o.Name).Errorf("object uuid cannot be empty")
	}
	return nil
}
