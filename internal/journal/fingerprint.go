package journal

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a unit of work by callable and encoded arguments,
// so repeated launches of the same work can be found across runs.
func Fingerprint(callable string, encodedArgs []string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(callable))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(argumentsJSON(encodedArgs)))
	return "blake3:" + hex.EncodeToString(h.Sum(nil))
}

func argumentsJSON(encodedArgs []string) string {
	return "[" + strings.Join(encodedArgs, ",") + "]"
}
