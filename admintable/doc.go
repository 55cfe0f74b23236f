// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package admintable declares the tables the admin panel may browse and
edit, and validates rows submitted for them.

Each Table lists its columns with a Kind and nullability. Validate turns a
decoded JSON row into driver-ready values:

	t, ok := admintable.Lookup("devices")
	values, err := t.Validate(row, admintable.ForUpdate)

Column and table names only ever come from these declarations, so the
store can splice them into SQL after quoting.
*/
package admintable
