// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package gamexml writes the XML documents the game client reads.

Every document is a <response> root whose children the client reads in
order, so documents are built with a Builder that appends elements one
at a time:

	b := gamexml.NewResponse()
	b.Element("code", 0)
	b.Element("model_pak", gamexml.Pak{Date: "1", URL: host + "files/gc/model1.pak"})
	b.Stages([]int{1, 2, 3})
	out, err := b.Bytes()

Fixed replies (invalid request, access denied, empty) are constants, and
the multilingual status replies are built with Status.
*/
package gamexml
