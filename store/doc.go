// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store holds every SQL statement the server runs against
PostgreSQL.

A Store satisfies the narrow lookup interfaces of the identity, policy,
ranking and shop packages, plus the account, bind, session, batch and
admin operations the handlers need.

Lookups of a single row return (nil, nil) when the row does not exist.
Updates that must hit a row return models.ErrNotFound when they do not.

# Locking

Read-modify-write operations run in one transaction with the row locked:

  - UpdateWallet locks the device row (SELECT ... FOR UPDATE)
  - SubmitResult locks the account row
  - TakePendingItems locks the device row before clearing its items
  - LinkDevice locks the account row while it trims old logins
  - ConsumeBatchToken locks the token row
*/
package store
