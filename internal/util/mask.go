package util

import "strings"

// MaskHex acorta un hash/address hex para logs: "a1b2c3d4…9f".
func MaskHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "…" + s[len(s)-2:]
}

// MaskRef oculta el path de un storage ref y deja sólo el esquema.
// "vault://3f2a..." -> "vault://***"
func MaskRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if i := strings.Index(ref, "://"); i > 0 {
		return ref[:i+3] + "***"
	}
	return "***"
}
