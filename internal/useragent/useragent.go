// Package useragent enforces the browser-only User-Agent allow-list
// applied to every puzzle and verify request.
package useragent

import "regexp"

// botPattern matches known automation clients and headless browsers.
// Compiled once at package init.
var botPattern = regexp.MustCompile(`(?i)(?:curl|wget|python-requests|python-httpx|python-urllib|httpx|` +
	`Go-http-client|Java/|Apache-HttpClient|` +
	`PostmanRuntime|insomnia|HTTPie|` +
	`node-fetch|axios|undici|got/|superagent|` +
	`scrapy|mechanize|aiohttp|` +
	`bot|crawler|spider|headless)`)

// browserPrefix is the common prefix every mainstream browser sends.
const browserPrefix = "Mozilla/5.0"

// Validate reports whether ua looks like it came from a real browser.
// On rejection it also returns a short, stable reason string suitable
// for logging or returning to the client.
func Validate(ua string) (bool, string) {
	if ua == "" {
		return false, "missing User-Agent header"
	}
	if botPattern.MatchString(ua) {
		return false, "automated client detected"
	}
	if len(ua) < len(browserPrefix) || ua[:len(browserPrefix)] != browserPrefix {
		return false, "invalid User-Agent format"
	}
	return true, ""
}
