// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ranking records play results and serves the leaderboards.

Submit keeps the best score per account, song and mode. Only improvements
move the account totals. The write drops the cached song board and the
returned rank is read from the fresh board. Devices without a linked
account still earn coins but are never ranked.

Individual and Total page through the cached boards and always include the
viewer's own entry, falling back to a guest row when the device is
unlinked.
*/
package ranking
