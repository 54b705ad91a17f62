package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/stayguide/guide-cli/internal/model"
)

// normalizer strips diacritics: NFD decomposition, drop combining marks,
// NFC recomposition.
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a name or address for duplicate comparison:
// diacritics removed, lowercased, all whitespace dropped. "Café du Port"
// and "cafe du port" normalize to the same string.
func Normalize(s string) string {
	out, _, err := transform.String(normalizer, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.Join(strings.Fields(out), "")
}

// AnnotateDuplicates flags every candidate that matches an existing
// inventory fingerprint and returns the updated slice. A candidate is a
// duplicate when its normalized name equals an existing name, or when
// either normalized address contains the other (non-empty on both sides).
// Duplicates are deselected; everything else starts selected.
func AnnotateDuplicates(candidates []model.Candidate, existing []model.Fingerprint) []model.Candidate {
	type fp struct {
		name, address string
	}
	known := make([]fp, 0, len(existing))
	for _, e := range existing {
		known = append(known, fp{Normalize(e.Name), Normalize(e.Address)})
	}

	out := make([]model.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		name := Normalize(out[i].Name)
		address := Normalize(out[i].Address)

		dup := false
		for _, k := range known {
			if name != "" && name == k.name {
				dup = true
				break
			}
			if address != "" && k.address != "" &&
				(strings.Contains(address, k.address) || strings.Contains(k.address, address)) {
				dup = true
				break
			}
		}

		out[i].IsDuplicate = dup
		out[i].Selected = !dup
	}
	return out
}
