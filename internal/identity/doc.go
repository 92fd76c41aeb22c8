// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package identity owns user accounts and the follow graph: credential
// hashing, registration and login, session token resolution, and the
// repositories that enforce the graph invariants (no self-follow, no
// duplicate edges, unique usernames and emails).
package identity
