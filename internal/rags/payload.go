package rags

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// payloadTag versiona el layout del payload canónico.
const payloadTag = "RAGS/1"

// CanonicalPayload arma los bytes que se firman:
//
//	"RAGS/1" ‖ lp(service) ‖ SHA256(message) ‖ lp(nonce) ‖ u64be(millis) ‖ lp(k1) ‖ lp(v1) ‖ ...
//
// con la metadata ordenada por clave y lp(x) = u32be(len(x)) ‖ x.
// Los prefijos de longitud evitan ambigüedades entre campos adyacentes.
func CanonicalPayload(serviceName string, message []byte, nonce string, unixMillis int64, metadata map[string]string) []byte {
	digest := sha256.Sum256(message)

	size := len(payloadTag) + 4 + len(serviceName) + len(digest) + 4 + len(nonce) + 8
	keys := make([]string, 0, len(metadata))
	for k, v := range metadata {
		keys = append(keys, k)
		size += 8 + len(k) + len(v)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, size)
	buf = append(buf, payloadTag...)
	buf = appendLP(buf, serviceName)
	buf = append(buf, digest[:]...)
	buf = appendLP(buf, nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(unixMillis))
	for _, k := range keys {
		buf = appendLP(buf, k)
		buf = appendLP(buf, metadata[k])
	}
	return buf
}

func appendLP(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
