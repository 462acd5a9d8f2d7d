package reconciler

import (
	"strings"

	"github.com/schollz/closestmatch"

	"act-reconciliation-service/internal/fuzzy"
)

const (
	// warehouseCutoff is the minimum token-set score for a warehouse
	// or point name to resolve to a responsible unit.
	warehouseCutoff = 85

	// buyerCutoff is the lower score used for the buyer-name
	// fallback, where names are noisier.
	buyerCutoff = 60

	// rawMaterialsPrefix routes a warehouse to the raw-materials
	// point directory, e.g. `Сырье / КРД Красная ул., 176`.
	rawMaterialsPrefix = "сырье"

	// candidateLimit bounds the bag-of-words preselection ahead of
	// the exact token-set scoring pass.
	candidateLimit = 10
)

// Directory resolves warehouses and buyer entities to responsible
// unit names using two point directories: one keyed by raw-materials
// point addresses, one keyed by full point names.
type Directory struct {
	rawMaterials map[string]string
	regular      map[string]string

	rawMaterialsCM *closestmatch.ClosestMatch
	regularCM      *closestmatch.ClosestMatch
}

// NewDirectory builds a Directory from the two point maps. Either map
// may be empty.
func NewDirectory(rawMaterials, regular map[string]string) *Directory {
	d := &Directory{rawMaterials: rawMaterials, regular: regular}
	d.rawMaterialsCM = closestmatch.New(mapKeys(rawMaterials), []int{2, 3})
	d.regularCM = closestmatch.New(mapKeys(regular), []int{2, 3})
	return d
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// bestMatch preselects candidates with the bag-of-words index, then
// scores them with the token-set ratio and applies the cutoff.
func bestMatch(query string, cm *closestmatch.ClosestMatch, keys map[string]string, cutoff int) (string, bool) {
	if query == "" || len(keys) == 0 {
		return "", false
	}
	candidates := cm.ClosestN(query, candidateLimit)
	match, ok := fuzzy.ExtractOne(query, candidates, fuzzy.TokenSetRatio, cutoff)
	if !ok {
		return "", false
	}
	return keys[match.Value], true
}

// ForWarehouse resolves a warehouse name to a responsible unit.
// Raw-materials warehouses are matched by the address part after the
// slash against the raw-materials directory; everything else, and
// raw-materials names that fail that pass, is matched whole against
// the regular directory.
func (d *Directory) ForWarehouse(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(name), rawMaterialsPrefix) {
		if _, address, found := strings.Cut(name, "/"); found {
			if unit, ok := bestMatch(strings.TrimSpace(address), d.rawMaterialsCM, d.rawMaterials, warehouseCutoff); ok {
				return unit
			}
		}
	}
	if unit, ok := bestMatch(name, d.regularCM, d.regular, warehouseCutoff); ok {
		return unit
	}
	return ""
}

// ForBuyer resolves a buyer entity name against the regular directory
// at the relaxed cutoff, after stripping a parenthesized qualifier.
func (d *Directory) ForBuyer(buyer string) string {
	if i := strings.Index(buyer, "("); i >= 0 {
		buyer = buyer[:i]
	}
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return ""
	}
	if unit, ok := bestMatch(buyer, d.regularCM, d.regular, buyerCutoff); ok {
		return unit
	}
	return ""
}
