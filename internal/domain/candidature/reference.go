package candidature

import "fmt"

// FormatNumber renders the human reference of the seq-th candidature of year.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("CAND-%d-%03d", year, seq)
}
