package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards returning the same value are combinable with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	// Outbound requests must carry a context so deadlines propagate.
	m.Match(`http.NewRequest($method, $url, $body)`).
		Report(`use http.NewRequestWithContext so request deadlines and cancellation propagate`).
		Suggest(`http.NewRequestWithContext(ctx, $method, $url, $body)`)

	// Stdout belongs to the stdio MCP transport; diagnostics go to stderr.
	m.Match(`fmt.Println($*args)`, `fmt.Printf($*args)`).
		Report(`stdout is reserved for the stdio MCP transport; write diagnostics to stderr or an injected writer`)
}
