package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "oracle-monitor/v") {
		t.Errorf("unexpected user agent prefix: %s", ua)
	}
	if !strings.HasSuffix(ua, Version) {
		t.Errorf("user agent %s does not carry version %s", ua, Version)
	}
}
