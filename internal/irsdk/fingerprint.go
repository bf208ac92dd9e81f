package irsdk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// CatalogFingerprint identifies a telemetry catalog by the name, type and
// count of every var, in catalog order. Units and descriptions are ignored.
func CatalogFingerprint(vars []Var) string {
	var sb strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&sb, "%s|%d|%d\n", v.Name, int(v.Type), v.Count)
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
