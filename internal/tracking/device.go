package tracking

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mssola/useragent"
)

// parseDevice derives DeviceInfo from the click context. A caller-supplied
// fingerprint wins; otherwise a stable fallback is hashed from the
// user agent and IP so velocity checks still have something to group on.
func parseDevice(clickCtx ClickContext) DeviceInfo {
	info := DeviceInfo{Fingerprint: clickCtx.Fingerprint}

	if clickCtx.UserAgent != "" {
		ua := useragent.New(clickCtx.UserAgent)
		name, _ := ua.Browser()
		info.Platform = ua.Platform()
		info.OS = ua.OS()
		info.Browser = name
		info.Mobile = ua.Mobile()
		info.Bot = ua.Bot()
	}

	if info.Fingerprint == "" {
		info.Fingerprint = fallbackFingerprint(clickCtx.UserAgent, clickCtx.IP)
	}
	return info
}

func fallbackFingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + ip))
	return "ua:" + hex.EncodeToString(sum[:16])
}
