// Command miabrelay is a Caddy build that includes the miabrelay app and
// handler, and the mailinabox DNS provider.
//
// Run the relay with:
//
//	miabrelay miabrelay --config relay.json
//
// or, configured from the environment:
//
//	MIAB_URL=https://box.example.com ... miabrelay miabrelay
package main

import (
	caddycmd "github.com/caddyserver/caddy/v2/cmd"

	_ "github.com/liujed/caddy-miabrelay"
)

func main() {
	caddycmd.Main()
}
