// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package policy decides whether a game, init or web request is served.

Two checks exist:

 1. List check (when AuthorizationNeeded): the device id or the account's
    username must be whitelisted, and neither may be blacklisted. The
    blacklist wins.
 2. Bind check (when Mode is email or Discord): the account must exist and
    hold a verified bind.

ShouldServe runs both, ShouldServeInit only the first. Errors deny.
*/
package policy
