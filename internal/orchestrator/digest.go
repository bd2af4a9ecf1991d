package orchestrator

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// codeDigest is the hex BLAKE3 digest used to spot repeated candidates.
func codeDigest(code string) string {
	sum := blake3.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
