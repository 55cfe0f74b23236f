// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package rankcache caches leaderboard record lists.

Song boards use SongKey and never expire; they are deleted whenever a
result for that song and mode is written. Category boards use TotalKey
and expire after two minutes.

Memory (go-cache) is the default backend. Redis is used when REDIS_URL is
set so several instances share invalidations.
*/
package rankcache
