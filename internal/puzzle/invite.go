package puzzle

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
)

// inviteCodePrefix is the fixed, non-secret prefix of every minted
// invite code.
const inviteCodePrefix = "HASHPASS-"

// inviteTruncateBytes is the number of leading bytes of the HMAC-SHA256
// digest retained before base64url-encoding, per spec §4.2/§6.
const inviteTruncateBytes = 12

// mintInviteCode derives an invite code deterministically from the
// server secret and the winning submission's identity. The HMAC input
// is "fingerprint:nonce:seed" exactly, joined with literal colons;
// nonce is rendered in decimal.
func mintInviteCode(secret []byte, fingerprint string, nonce uint64, seed string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(fingerprint))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatUint(nonce, 10)))
	mac.Write([]byte(":"))
	mac.Write([]byte(seed))
	digest := mac.Sum(nil)

	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(digest[:inviteTruncateBytes])
	return inviteCodePrefix + encoded
}

// inviteCodesEqual compares two invite codes for equality in constant
// time, as required whenever a previously-minted code is later
// compared against user input (e.g. redemption flows run by the out-
// of-scope collaborator that consumes invite codes).
func inviteCodesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
