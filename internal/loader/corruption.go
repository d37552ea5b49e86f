package loader

import (
	"strings"

	"github.com/KaramelBytes/datakit-cli/internal/table"
)

// Fingerprints are sequences left behind when UTF-8 text is decoded as a
// single-byte encoding.
var Fingerprints = []string{"Ã", "Â£", "Ã±", "Ã¡", "Ã©", "Â"}

const corruptionScanRows = 100

// CheckCorruption scans the first rows of every text column for a
// fingerprint. It returns the column name and matched sequence on a hit.
func CheckCorruption(t *table.Table) (bool, string) {
	n := min(t.Rows(), corruptionScanRows)
	for _, c := range t.Columns {
		if c.Kind != table.Text {
			continue
		}
		parts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				parts = append(parts, c.Text(i))
			}
		}
		joined := strings.Join(parts, " ")
		for _, fp := range Fingerprints {
			if strings.Contains(joined, fp) {
				return true, c.Name + ": " + fp
			}
		}
	}
	return false, ""
}
