//go:build !unsafe && !tinygo

package mqtt

func bytesFromString(s string) []byte {
	return []byte(s) // heap allocation ensured.
}

// stringFromBytes copies b into a new string, so the result stays valid
// after the parser or the transport reuses b. This build uses it for every
// inbound PUBLISH topic, whichever parser path produced it.
func stringFromBytes(b []byte) string {
	return string(b)
}
