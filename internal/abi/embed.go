package abi

import _ "embed"

var (
	//go:embed resources/giver.abi.json
	giverJSON []byte

	//go:embed resources/helloWorld.abi.json
	helloWorldJSON []byte
)

// Interfaces shipped with the binary.
var (
	Giver      = MustParse("giver", giverJSON)
	HelloWorld = MustParse("helloWorld", helloWorldJSON)
)
