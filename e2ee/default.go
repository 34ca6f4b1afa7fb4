// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package e2ee

import (
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/session"
)

// Default generates a fresh identity keypair and returns a Manager with
// default session-store settings. It exists only for the outermost
// process boundary (cmd/ binaries, quick demos) — library code should call
// NewManager with an already-materialized identity keypair instead.
func Default() (*Manager, error) {
	local, err := identity.GenerateIdentityKeyPair()
	if err != nil {
		return nil, err
	}
	return NewManager(local, session.Config{}), nil
}
