package patternstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignatureHash derives the stable signature_hash for a canonical
// pattern signature. Identical canonical text always yields the same hash,
// which is what lets two independently-observed executions of the same
// underlying pattern converge on one lineage instead of forking one per
// producer's spelling of the signature.
func ComputeSignatureHash(signature string) string {
	sum := sha256.Sum256([]byte(signature))

	return hex.EncodeToString(sum[:])
}
