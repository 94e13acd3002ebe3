package catalog

import (
	"fmt"
	"math/rand"
)

// randomISBN produces a pseudo ISBN-13-shaped string: 978-G-RRR-PPPPPP-C.
// The check digit is random, not a real checksum; the catalog only needs
// the value to look like an ISBN and be unique.
func randomISBN() string {
	group := rand.Intn(9) + 1            // 1-9
	registrant := rand.Intn(900) + 100   // 3 digits
	publication := rand.Intn(900000) + 100000 // 6 digits
	check := rand.Intn(10) // 0-9
	return fmt.Sprintf("978-%d-%d-%d-%d", group, registrant, publication, check)
}
